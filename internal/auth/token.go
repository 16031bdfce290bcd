package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims はバックエンド発行JWTのクレームを表す。
type AccessTokenClaims struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	UserID      int64  `json:"user_id"`
	UserLevelID int64  `json:"user_level_id"`
	jwt.RegisteredClaims
}

// DecodeAccessToken はバックエンド発行のJWTからクレームを取り出す。
// 署名の検証はバックエンド側の責務であり、BFFはクレームの読み取りのみを行うため、
// ParseUnverifiedを使用する。
func DecodeAccessToken(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	if claims.UserID == 0 {
		return nil, fmt.Errorf("access token has no user_id claim")
	}

	return claims, nil
}
