package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"tilespace-backend/pkg/models"
)

// DefaultAccessTTL 访问令牌有效期（与托管认证服务一致）
const DefaultAccessTTL = time.Hour

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// JWTService JWT服务
type JWTService struct {
	secretKey []byte
}

// NewJWTService 创建JWT服务
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
	}
}

// GenerateAccessToken 签发访问令牌（CLI 为扩展生成开发用令牌时使用）
func (j *JWTService) GenerateAccessToken(userID, email string, ttl time.Duration) (string, int64, error) {
	if userID == "" {
		return "", 0, fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	now := time.Now()
	expiry := now.Add(ttl)

	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleAuthenticated,
		Exp:    expiry.Unix(),
		Iat:    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, expiry.Unix(), nil
}

// ValidateToken 验证令牌（签名算法、过期时间、sub、role）
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	// anon / service_role 令牌不代表具体用户
	if claims.Role != "" && claims.Role != models.RoleAuthenticated {
		return nil, fmt.Errorf("%w: role %q is not a user session", ErrInvalidToken, claims.Role)
	}

	return claims, nil
}

// ExtractUserFromToken 从令牌中提取用户信息
func (j *JWTService) ExtractUserFromToken(tokenString string) (*models.User, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:    claims.UserID,
		Email: claims.Email,
	}, nil
}
