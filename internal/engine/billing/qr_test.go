package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/shopspring/decimal"
)

func qrConfig() config.BillingConfig {
	return config.BillingConfig{
		BeneficiaryName: "Monoliet Automatisering",
		IBAN:            "NL91 ABNA 0417 1643 00",
		BIC:             "ABNANL2A",
	}
}

func qrInvoice() *models.Invoice {
	return &models.Invoice{
		ID:            "inv_1",
		ClientID:      "cl_1",
		InvoiceNumber: "INV-2026-042",
		Amount:        decimal.RequireFromString("250.5"),
		Status:        models.InvoicePending,
		DueDate:       time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPaymentPayload(t *testing.T) {
	payload, err := paymentPayload(qrConfig(), qrInvoice())
	if err != nil {
		t.Fatalf("paymentPayload: %v", err)
	}

	lines := strings.Split(payload, "\n")
	if len(lines) != 11 {
		t.Fatalf("payload has %d lines, want 11:\n%s", len(lines), payload)
	}

	want := []string{
		"BCD",
		"002",
		"1",
		"SCT",
		"ABNANL2A",
		"Monoliet Automatisering",
		"NL91ABNA0417164300",
		"EUR250.50",
		"",
		"",
		"Invoice INV-2026-042",
	}
	for i, line := range want {
		if lines[i] != line {
			t.Errorf("line %d = %q, want %q", i+1, lines[i], line)
		}
	}
}

func TestPaymentPayloadRequiresAccount(t *testing.T) {
	_, err := paymentPayload(config.BillingConfig{}, qrInvoice())
	if err != ErrQRNotConfigured {
		t.Fatalf("error = %v, want ErrQRNotConfigured", err)
	}
}

func TestPaymentQR(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "default size", size: 0, wantErr: false},
		{name: "explicit size", size: 256, wantErr: false},
		{name: "size too small", size: 100, wantErr: true},
		{name: "size too large", size: 5000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PaymentQR(qrConfig(), qrInvoice(), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PaymentQR() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) == 0 {
				t.Error("PaymentQR() returned empty bytes")
			}
		})
	}
}
