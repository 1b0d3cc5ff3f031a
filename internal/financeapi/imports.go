package financeapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-client/internal/domain"
)

// UploadCSV sends a bank export for parsing and returns the rows the backend
// would import. Nothing is saved.
func (c *Client) UploadCSV(ctx context.Context, accountID int64, fileName string, data []byte, bank domain.BankName) ([]domain.TransactionPreview, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("UploadCSV: creating file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("UploadCSV: writing file part: %w", err)
	}
	if err := mw.WriteField("bankName", string(bank)); err != nil {
		return nil, fmt.Errorf("UploadCSV: writing bankName: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("UploadCSV: closing multipart body: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/accounts/" + strconv.FormatInt(accountID, 10) + "/upload",
		body:        &body,
		contentType: mw.FormDataContentType(),
	}

	var previews []domain.TransactionPreview
	if err := c.do(ctx, req, &previews); err != nil {
		return nil, fmt.Errorf("UploadCSV: %s: %w", fileName, err)
	}
	return previews, nil
}

// SaveImportedTransactions saves previewed rows and returns the backend's
// confirmation message.
func (c *Client) SaveImportedTransactions(ctx context.Context, accountID int64, saveReq domain.SaveTransactionRequest) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/accounts/"+strconv.FormatInt(accountID, 10)+"/transactions", saveReq)
	if err != nil {
		return "", fmt.Errorf("SaveImportedTransactions: %w", err)
	}

	var message string
	if err := c.do(ctx, req, &message); err != nil {
		return "", fmt.Errorf("SaveImportedTransactions: %s: %w", saveReq.FileName, err)
	}
	return message, nil
}
