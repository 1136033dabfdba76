package syncengine

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// PubSubPushEnvelope is the wrapper Google Pub/Sub wraps around push
// deliveries. The Data field is base64 in the wire JSON; []byte
// unmarshalling handles the decoding.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func DecodeSaleEvent(raw []byte) (models.SharedSaleRow, error) {
	var row models.SharedSaleRow
	err := utils.UnmarshalFromJSON(raw, &row)
	return row, err
}

type CancelSaleResponse struct {
	ID       string `json:"id"`
	Canceled bool   `json:"canceled"`
}

type CreateSaleResponse struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OriginStore string          `json:"origin_store"`
}
