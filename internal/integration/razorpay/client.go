package razorpay

import (
	razorpaysdk "github.com/razorpay/razorpay-go"

	"github.com/planlogic/subscription-service/pkg/logger"
)

// Client обертка над SDK Razorpay для операций с подписками
type Client struct {
	api           *razorpaysdk.Client
	webhookSecret string
	log           *logger.Logger
}

// NewClient создает новый клиент Razorpay
func NewClient(keyID, keySecret, webhookSecret string, log *logger.Logger) *Client {
	return &Client{
		api:           razorpaysdk.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
		log:           log,
	}
}
