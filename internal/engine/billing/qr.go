package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/skip2/go-qrcode"
)

// ErrQRNotConfigured is returned when the payment QR is requested but
// no beneficiary account is configured.
var ErrQRNotConfigured = errors.New("payment account not configured")

// PaymentQR renders an invoice as an EPC069-12 SEPA credit transfer QR
// (the code banking apps scan off a paper invoice). The payload is
// fixed-position lines, so empty optional fields keep their line.
func PaymentQR(cfg config.BillingConfig, inv *models.Invoice, size int) ([]byte, error) {
	if size == 0 {
		size = 512
	}
	if size < 128 || size > 2048 {
		return nil, errors.New("invalid size: must be between 128 and 2048")
	}

	payload, err := paymentPayload(cfg, inv)
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(size)
}

func paymentPayload(cfg config.BillingConfig, inv *models.Invoice) (string, error) {
	if cfg.BeneficiaryName == "" || cfg.IBAN == "" {
		return "", ErrQRNotConfigured
	}

	lines := []string{
		"BCD",
		"002",
		"1",
		"SCT",
		cfg.BIC,
		cfg.BeneficiaryName,
		strings.ToUpper(strings.ReplaceAll(cfg.IBAN, " ", "")),
		"EUR" + inv.Amount.StringFixed(2),
		"",
		"",
		fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
	}
	return strings.Join(lines, "\n"), nil
}
