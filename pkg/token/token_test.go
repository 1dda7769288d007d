package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_SessionToken_Format(t *testing.T) {
	req := require.New(t)

	tok := GenerateSessionToken()
	req.Len(tok, SessionTokenBytes*2)
	req.Regexp("^[0-9a-f]+$", tok)

	req.NotEqual(tok, GenerateSessionToken())
}

func Test_JWT_Roundtrip(t *testing.T) {
	req := require.New(t)
	manager := NewJWTManager("test-secret", 2, 7)

	tok, err := manager.GenerateToken("admin", "관리자", "admin")
	req.NoError(err)

	claims, err := manager.VerifyToken(tok)
	req.NoError(err)
	req.Equal("admin", claims.UserID)
	req.Equal("관리자", claims.Name)
	req.Equal("admin", claims.Group)
	req.True(claims.ExpiresAt.After(time.Now()))
}

func Test_JWT_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)

	tok, err := NewJWTManager("secret-a", 2, 7).GenerateToken("admin", "관리자", "admin")
	req.NoError(err)

	_, err = NewJWTManager("secret-b", 2, 7).VerifyToken(tok)
	req.Error(err)
}

func Test_JWT_Rejects_Expired(t *testing.T) {
	req := require.New(t)

	// 过期时长为负的 manager 签发的 token 立即过期
	manager := NewJWTManager("test-secret", -1, 7)
	tok, err := manager.GenerateToken("admin", "관리자", "admin")
	req.NoError(err)

	_, err = manager.VerifyToken(tok)
	req.Error(err)
}

func Test_JWT_Rejects_Garbage(t *testing.T) {
	req := require.New(t)
	manager := NewJWTManager("test-secret", 2, 7)

	_, err := manager.VerifyToken("not.a.jwt")
	req.Error(err)
}
