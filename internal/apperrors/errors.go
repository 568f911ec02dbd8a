package apperrors

import "errors"

// ErrTransactionNotFound indicates the bank transaction does not exist.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrInvoiceNotFound indicates the target invoice does not exist.
var ErrInvoiceNotFound = errors.New("invoice not found")

// ErrAlreadyMatched indicates the transaction is already matched to an invoice
// and must be reversed before it can be matched again.
var ErrAlreadyMatched = errors.New("transaction already matched")

// ErrInvoiceAlreadySettled indicates the invoice can no longer accept a
// payment (fully paid, or in a non-payable status).
var ErrInvoiceAlreadySettled = errors.New("invoice already settled")

// ErrCannotDeleteMatched indicates a matched transaction must be reversed
// before deletion, to avoid orphaning a registered payment.
var ErrCannotDeleteMatched = errors.New("cannot delete a matched transaction")

// ErrInvalidTransition indicates the requested operation is not allowed from
// the transaction's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrCurrencyMismatch indicates the transaction and invoice currencies differ.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrUnparseableFile indicates the uploaded statement could not be parsed at
// all; nothing was persisted.
var ErrUnparseableFile = errors.New("unparseable statement file")

// ErrUnknownBankFormat indicates no format adapter is registered under the
// requested name.
var ErrUnknownBankFormat = errors.New("unknown bank format")
