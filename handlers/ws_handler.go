package handlers

import (
	"errors"
	"fmt"

	config "github.com/anjiri1684/marketplace_booking/configs"
	"github.com/anjiri1684/marketplace_booking/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeWs authenticates the first frame, then keeps the connection open for
// notification pushes until the client goes away.
func ServeWs(c *websocketcontrib.Conn) {
	log := deps.Logger.Named("ws")

	var auth authMessage
	if err := c.ReadJSON(&auth); err != nil || auth.Type != "auth" {
		log.Debug("websocket auth failed: missing auth message", zap.Error(err))
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	userID, err := userFromToken(auth.Token)
	if err != nil {
		log.Debug("websocket auth failed", zap.Error(err))
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	if !deps.Hub.Join(client) {
		_ = c.WriteJSON(fiber.Map{"error": "Server is shutting down"})
		c.Close()
		return
	}
	defer func() {
		deps.Hub.Leave(client)
		c.Close()
	}()

	for {
		// Clients only listen; reading detects the close.
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Debug("websocket read error", zap.Stringer("user_id", userID), zap.Error(err))
			}
			return
		}
	}
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.Config("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func userFromToken(tokenString string) (uuid.UUID, error) {
	claims, err := parseToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	sub, _ := claims["user_id"].(string)
	return uuid.Parse(sub)
}
