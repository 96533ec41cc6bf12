package utils

import (
	"fmt"
	"strconv"

	"leadmailer/config"

	"github.com/golang-jwt/jwt/v5"
)

type UnsubscribeClaims struct {
	LeadID uint `json:"lead_id"`
	jwt.RegisteredClaims
}

// GetOrCreateUnsubscribeToken returns the signed unsubscribe token for a
// lead. The claims carry no timestamps, so the same lead always gets the same
// token and links in already-delivered emails never expire.
func GetOrCreateUnsubscribeToken(leadID uint) (string, error) {
	claims := &UnsubscribeClaims{
		LeadID: leadID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatUint(uint64(leadID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.EncryptionKey))
}

// ParseUnsubscribeToken validates a token and returns the lead id it was
// issued for
func ParseUnsubscribeToken(tokenString string) (uint, error) {
	claims := &UnsubscribeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(config.AppConfig.EncryptionKey), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid unsubscribe token")
	}
	return claims.LeadID, nil
}

// UnsubscribeURL builds the public unsubscribe link embedded in footers
func UnsubscribeURL(leadID uint) (string, error) {
	token, err := GetOrCreateUnsubscribeToken(leadID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/unsubscribe/%s", config.AppConfig.PublicBaseURL, token), nil
}
