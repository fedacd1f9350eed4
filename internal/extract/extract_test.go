package extract

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseStatementJSON(t *testing.T) {
	reply := `{
		"accountInfo": {"accountNumber": "1234", "statementDate": "2025-05-31", "beginningBalance": 1500.25, "endingBalance": 980.10},
		"deposits": [{"dateCredited": "05-02", "description": "PAYROLL", "amount": 2500}],
		"atmWithdrawals": [{"tranDate": "05-03", "datePosted": "05-04", "description": "ATM MAIN ST", "amount": -100}],
		"checksPaid": [{"datePaid": "05-10", "checkNumber": "1044", "amount": 350.5, "referenceNumber": "R-1"}],
		"visaPurchases": []
	}`

	data, err := ParseStatementJSON(reply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if data.AccountInfo.AccountNumber != "1234" {
		t.Fatalf("account number = %q", data.AccountInfo.AccountNumber)
	}
	if len(data.Deposits) != 1 || data.Deposits[0].Amount != 2500 {
		t.Fatalf("deposits = %+v", data.Deposits)
	}
	if len(data.ATMWithdrawals) != 1 || data.ATMWithdrawals[0].Amount != -100 {
		t.Fatalf("withdrawals = %+v", data.ATMWithdrawals)
	}
	if len(data.ChecksPaid) != 1 || data.ChecksPaid[0].CheckNumber != "1044" {
		t.Fatalf("checks = %+v", data.ChecksPaid)
	}
}

func TestParseStatementJSONStripsCodeFence(t *testing.T) {
	fenced := "```json\n{\"accountInfo\":{\"accountNumber\":\"99\"},\"deposits\":[],\"atmWithdrawals\":[],\"checksPaid\":[],\"visaPurchases\":[]}\n```"
	data, err := ParseStatementJSON(fenced)
	if err != nil {
		t.Fatalf("parse fenced: %v", err)
	}
	if data.AccountInfo.AccountNumber != "99" {
		t.Fatalf("account number = %q", data.AccountInfo.AccountNumber)
	}

	bare := "```\n{\"accountInfo\":{},\"deposits\":[],\"atmWithdrawals\":[],\"checksPaid\":[],\"visaPurchases\":[]}\n```"
	if _, err = ParseStatementJSON(bare); err != nil {
		t.Fatalf("parse bare fence: %v", err)
	}
}

func TestParseStatementJSONMalformed(t *testing.T) {
	if _, err := ParseStatementJSON("I could not read this statement."); !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("prose reply = %v, want ErrExtractionFailed", err)
	}
	if _, err := ParseStatementJSON(""); !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("empty reply = %v, want ErrExtractionFailed", err)
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7\nrest")) {
		t.Fatalf("pdf header rejected")
	}
	if IsPDF([]byte("PK\x03\x04")) {
		t.Fatalf("zip accepted as pdf")
	}
	if IsPDF(nil) {
		t.Fatalf("empty accepted as pdf")
	}
}

func TestCountPages(t *testing.T) {
	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n")
	doc.WriteString("1 0 obj << /Type /Pages /Kids [2 0 R 3 0 R 4 0 R] >> endobj\n")
	for i := 2; i <= 4; i++ {
		doc.WriteString("<< /Type /Page /Parent 1 0 R >> endobj\n")
	}

	if got := CountPages(doc.Bytes()); got != 3 {
		t.Fatalf("pages = %d, want 3", got)
	}
	if got := CountPages([]byte("%PDF-1.4\nno page objects")); got != 1 {
		t.Fatalf("fallback = %d, want 1", got)
	}
	if got := CountPages(nil); got != 1 {
		t.Fatalf("empty = %d, want 1", got)
	}
}

func TestClientConfigured(t *testing.T) {
	if NewClient("").Configured() {
		t.Fatalf("empty key reported configured")
	}
	if !NewClient("  key  ").Configured() {
		t.Fatalf("present key reported unconfigured")
	}
}
