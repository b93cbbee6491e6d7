package parser

import (
	"testing"

	"github.com/shopspring/decimal"

	"go.uber.org/zap"
)

func TestHapoalimParser_Parse(t *testing.T) {
	p := &HapoalimParser{cfg: DefaultConfig(), log: zap.NewNop()}

	pages := []string{
		`בנק הפועלים בע"מ
תנועות בחשבון 409-123456
יתרה לסוף יום 5,000.00 01/03/2024
5,000.00 הפקדת משכורת 03/03/2024
4,820.50 כרטיס אשראי 04/03/2024
4,820.50
עמוד 1 מתוך 2`,
		`4,700.00 העברה לספק 04/03/2024
6,150.25 זיכוי ריבית 05/03/2024
סך הכל 6,150.25 05/03/2024`,
	}

	res, err := p.Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Points) != 3 {
		t.Fatalf("points: got %d, want 3", len(res.Points))
	}

	tests := []struct {
		idx     int
		date    string
		balance string
	}{
		{0, "2024-03-03", "5000.00"},
		{1, "2024-03-04", "4700.00"}, // second page row supersedes the first for 04/03
		{2, "2024-03-05", "6150.25"},
	}

	for _, tt := range tests {
		point := res.Points[tt.idx]
		if got := point.Date.Format("2006-01-02"); got != tt.date {
			t.Errorf("point[%d].Date: got %s, want %s", tt.idx, got, tt.date)
		}
		if want := decimal.RequireFromString(tt.balance); !point.Balance.Equal(want) {
			t.Errorf("point[%d].Balance: got %s, want %s", tt.idx, point.Balance, want)
		}
	}
}

func TestHapoalimParser_MatchLine(t *testing.T) {
	p := &HapoalimParser{cfg: DefaultConfig(), log: zap.NewNop()}

	tests := []struct {
		name    string
		line    string
		date    string
		balance string
		outcome string
	}{
		{"minimal row", "1,250.75  01/03/2024", "2024-03-01", "1250.75", "matched"},
		{"row with description", "₪12,345.67 הפקדת משכורת 03/01/2024", "2024-01-03", "12345.67", "matched"},
		{"negative balance", "-2,340.10 משיכת יתר 07/03/2024", "2024-03-07", "-2340.10", "matched"},
		{"two digit year rejected", "1,250.75 הפקדה 01/03/24", "", "", "skipped"},
		{"no leading balance", "הפקדת משכורת 01/03/2024", "", "", "skipped"},
		{"no trailing date", "1,250.75 הפקדת משכורת", "", "", "skipped"},
		{"too short", "4,820.50", "", "", "skipped"},
		{"daily balance caption", "יתרה לסוף יום 5,000.00 01/03/2024", "", "", "excluded"},
		{"section total", "סך הכל 6,150.25 05/03/2024", "", "", "excluded"},
		{"page footer", "עמוד 1 מתוך 2 01/03/2024", "", "", "excluded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, outcome := p.matchLine(tt.line)
			if outcome != tt.outcome {
				t.Fatalf("outcome: got %q, want %q", outcome, tt.outcome)
			}
			if tt.outcome != "matched" {
				if point != nil {
					t.Fatalf("expected no point, got %+v", point)
				}
				return
			}
			if point == nil {
				t.Fatal("expected a point, got nil")
			}
			if got := point.Date.Format("2006-01-02"); got != tt.date {
				t.Errorf("date: got %s, want %s", got, tt.date)
			}
			if want := decimal.RequireFromString(tt.balance); !point.Balance.Equal(want) {
				t.Errorf("balance: got %s, want %s", point.Balance, want)
			}
		})
	}
}

func TestHapoalimParser_EmptyInput(t *testing.T) {
	p := &HapoalimParser{cfg: DefaultConfig(), log: zap.NewNop()}

	res, err := p.Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Points) != 0 {
		t.Errorf("points: got %d, want 0", len(res.Points))
	}
}
