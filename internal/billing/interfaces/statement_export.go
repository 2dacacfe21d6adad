package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billingapp "telegateway/internal/billing/application"
	"telegateway/internal/observability/metrics"
)

// BuildStatementPDF renders a minimal PDF for a monthly statement.
func BuildStatementPDF(stmt *billingapp.MonthlyStatement) ([]byte, error) {
	start := time.Now()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Monthly Balance Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Merchant: %s", stmt.MerchantID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", stmt.Month.Format("2006-01")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", stmt.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Credits: %s", stmt.TotalCredits.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Debits: %s", stmt.TotalDebits.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Platform Fees: %s", stmt.TotalFees.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Closing Balance: %s", stmt.ClosingBalance.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Closing Debt: %s", stmt.ClosingDebt.StringFixed(2)))
	pdf.Ln(8)

	// Transactions table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(80, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, txn := range stmt.Transactions {
		pdf.CellFormat(40, 6, txn.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, string(txn.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, txn.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(80, 6, txn.Description, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Invoice Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Fees", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, invoice := range stmt.Invoices {
		pdf.CellFormat(40, 6, invoice.InvoiceDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, invoice.TotalFees.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", invoice.FeesCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, string(invoice.Status), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		metrics.ObserveStatementExport("pdf", metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveStatementExport("pdf", metrics.ResultSuccess, time.Since(start))
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a minimal XLSX for a monthly statement.
func BuildStatementXLSX(stmt *billingapp.MonthlyStatement) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	summarySheet := "summary"
	txnSheet := "transactions"
	invoiceSheet := "invoices"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(txnSheet)
	f.NewSheet(invoiceSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Monthly Balance Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Merchant")
	_ = f.SetCellValue(summarySheet, "B3", stmt.MerchantID)
	_ = f.SetCellValue(summarySheet, "A4", "Month")
	_ = f.SetCellValue(summarySheet, "B4", stmt.Month.Format("2006-01"))
	_ = f.SetCellValue(summarySheet, "A5", "Total Credits")
	_ = f.SetCellValue(summarySheet, "B5", stmt.TotalCredits.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A6", "Total Debits")
	_ = f.SetCellValue(summarySheet, "B6", stmt.TotalDebits.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A7", "Total Platform Fees")
	_ = f.SetCellValue(summarySheet, "B7", stmt.TotalFees.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A8", "Closing Balance")
	_ = f.SetCellValue(summarySheet, "B8", stmt.ClosingBalance.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A9", "Closing Debt")
	_ = f.SetCellValue(summarySheet, "B9", stmt.ClosingDebt.StringFixed(2))

	_ = f.SetCellValue(txnSheet, "A1", "Date")
	_ = f.SetCellValue(txnSheet, "B1", "Type")
	_ = f.SetCellValue(txnSheet, "C1", "Amount")
	_ = f.SetCellValue(txnSheet, "D1", "Description")
	_ = f.SetCellValue(txnSheet, "E1", "Reference")
	for i, txn := range stmt.Transactions {
		row := i + 2
		_ = f.SetCellValue(txnSheet, fmt.Sprintf("A%d", row), txn.CreatedAt.Format("2006-01-02 15:04:05"))
		_ = f.SetCellValue(txnSheet, fmt.Sprintf("B%d", row), string(txn.Type))
		_ = f.SetCellValue(txnSheet, fmt.Sprintf("C%d", row), txn.Amount.StringFixed(2))
		_ = f.SetCellValue(txnSheet, fmt.Sprintf("D%d", row), txn.Description)
		_ = f.SetCellValue(txnSheet, fmt.Sprintf("E%d", row), txn.ReferenceID)
	}

	_ = f.SetCellValue(invoiceSheet, "A1", "Invoice Date")
	_ = f.SetCellValue(invoiceSheet, "B1", "Fees")
	_ = f.SetCellValue(invoiceSheet, "C1", "Count")
	_ = f.SetCellValue(invoiceSheet, "D1", "Status")
	_ = f.SetCellValue(invoiceSheet, "E1", "Due Date")
	for i, invoice := range stmt.Invoices {
		row := i + 2
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("A%d", row), invoice.InvoiceDate.Format("2006-01-02"))
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("B%d", row), invoice.TotalFees.StringFixed(2))
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("C%d", row), invoice.FeesCount)
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("D%d", row), string(invoice.Status))
		_ = f.SetCellValue(invoiceSheet, fmt.Sprintf("E%d", row), invoice.DueDate.Format("2006-01-02"))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		metrics.ObserveStatementExport("xlsx", metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveStatementExport("xlsx", metrics.ResultSuccess, time.Since(start))
	return buf.Bytes(), nil
}
