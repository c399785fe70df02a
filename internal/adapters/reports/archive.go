package reports

import (
	"context"
	"duesdesk/internal/blob"
	"duesdesk/internal/core"
	"duesdesk/pkg/domain"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var _ core.ReceiptArchive = (*Archiver)(nil)

// Archive key prefixes.
const (
	PrefixReceipts = "receipts/"
	PrefixReports  = "reports/"
)

// LinkExpiry bounds download links handed out by List.
const LinkExpiry = 15 * time.Minute

// Archiver writes receipts and report exports to a blob store. Keys are
// receipts/<receiptNo>.json and reports/<name>-<epochms>.csv.
type Archiver struct {
	store blob.Store
	now   func() time.Time
}

// ArchiverOption customises an Archiver.
type ArchiverOption func(*Archiver)

// WithNow overrides the clock used in report keys.
func WithNow(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// NewArchiver wraps store.
func NewArchiver(store blob.Store, opts ...ArchiverOption) *Archiver {
	a := &Archiver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveReceipt stores the receipt as JSON.
func (a *Archiver) ArchiveReceipt(ctx context.Context, receipt core.Receipt) (string, error) {
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode receipt %s: %w", receipt.ReceiptNo, err)
	}
	key := receiptKey(receipt.ReceiptNo)
	_, err = blob.PutBytes(ctx, a.store, key, data, blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"student":   receipt.Student.RollNo,
			"feeId":     strconv.Itoa(receipt.Fee.ID),
			"archiveId": uuid.NewString(),
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveReport stores a CSV export.
func (a *Archiver) ArchiveReport(ctx context.Context, name string, data []byte) (string, error) {
	key := fmt.Sprintf("%s%s-%d.csv", PrefixReports, name, a.now().UnixMilli())
	_, err := blob.PutBytes(ctx, a.store, key, data, blob.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"archiveId": uuid.NewString()},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Receipt loads an archived receipt. A missing receipt is a domain.ErrNotFound.
func (a *Archiver) Receipt(ctx context.Context, receiptNo string) (core.Receipt, error) {
	_, data, err := blob.ReadAll(ctx, a.store, receiptKey(receiptNo))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			return core.Receipt{}, domain.ErrNotFound{Entity: domain.EntityReceipt, ID: receiptNo}
		}
		return core.Receipt{}, err
	}
	var receipt core.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return core.Receipt{}, fmt.Errorf("decode receipt %s: %w", receiptNo, err)
	}
	return receipt, nil
}

// Entry is a listed archive object with an optional download link.
type Entry struct {
	blob.Info
	URL string `json:"url,omitempty"`
}

// List returns archived objects under prefix, which must be empty,
// PrefixReceipts or PrefixReports. Drivers that cannot sign links leave URL
// empty.
func (a *Archiver) List(ctx context.Context, prefix string) ([]Entry, error) {
	switch prefix {
	case "", PrefixReceipts, PrefixReports:
	default:
		return nil, domain.ValidationError{Fields: map[string]string{
			"prefix": "must be " + PrefixReceipts + " or " + PrefixReports,
		}}
	}
	infos, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		url, err := a.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Expiry: LinkExpiry})
		if err != nil && !errors.Is(err, blob.ErrUnsupported) {
			return nil, fmt.Errorf("link %s: %w", info.Key, err)
		}
		entries = append(entries, Entry{Info: info, URL: url})
	}
	return entries, nil
}

func receiptKey(receiptNo string) string {
	return PrefixReceipts + receiptNo + ".json"
}
