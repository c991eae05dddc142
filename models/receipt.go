package models

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"text/template"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Receipt struct {
	ReceiptId    string          `json:"receipt_id"`
	SaleId       int             `json:"sale_id"`
	DateTime     time.Time       `json:"date_time"`
	ProduceName  string          `json:"produce_name"`
	ProduceType  string          `json:"produce_type"`
	Branch       Branch          `json:"branch"`
	Tonnage      decimal.Decimal `json:"tonnage"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	BuyerName    string          `json:"buyer_name"`
	BuyerContact string          `json:"buyer_contact"`
	AgentName    string          `json:"agent_name"`
	IsCredit     bool            `json:"is_credit"`
	Credit       *CreditSale     `json:"credit,omitempty"`
}

// GetReceipt assembles the printable fields of a sale by its receipt id.
func GetReceipt(ctx context.Context, receiptId string) (*Receipt, error) {
	if err := Authorize(ctx, OpGetReceipt); err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	receiptId = strings.ToUpper(strings.TrimSpace(receiptId))

	var sale Sale
	if err := db.Preload("Credit").Where("receipt_id = ?", receiptId).First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("receipt", receiptId)
		}
		return nil, err
	}
	produce, err := utils.FetchModel[Produce](ctx, db, "produce", sale.ProduceId)
	if err != nil {
		return nil, err
	}
	agentName := ""
	if agent, err := GetUser(ctx, sale.AgentId); err == nil {
		agentName = agent.Name
	}
	return &Receipt{
		ReceiptId:    sale.ReceiptId,
		SaleId:       sale.ID,
		DateTime:     sale.DateTime,
		ProduceName:  produce.Name,
		ProduceType:  produce.Type.Label(),
		Branch:       produce.Branch,
		Tonnage:      sale.Tonnage,
		AmountPaid:   sale.AmountPaid,
		BuyerName:    sale.BuyerName,
		BuyerContact: sale.BuyerContact,
		AgentName:    agentName,
		IsCredit:     sale.IsCredit,
		Credit:       sale.Credit,
	}, nil
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`KARIBU GROCERIES LTD
Sales Receipt
------------------------------
Receipt ID : {{.ReceiptId}}
Date       : {{.DateTime.Format "2006-01-02 15:04"}}
Branch     : {{.Branch}}
Produce    : {{.ProduceName}} ({{.ProduceType}})
Tonnage    : {{.Tonnage.StringFixed 2}}
Amount Paid: {{.AmountPaid.StringFixed 2}}
Buyer      : {{.BuyerName}}
Contact    : {{.BuyerContact}}
Sales Agent: {{.AgentName}}
{{- if .Credit}}
------------------------------
CREDIT SALE
National ID: {{.Credit.NationalId}}
Location   : {{.Credit.Location}}
Amount Due : {{.Credit.AmountDue.StringFixed 2}}
Due Date   : {{.Credit.DueDate.Format "2006-01-02"}}
{{- end}}
------------------------------
Thank you for your business!
`))

// RenderText renders the receipt as plain text for printing.
func (r *Receipt) RenderText() (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
