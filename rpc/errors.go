package rpc

import (
	"errors"
	"net/http"

	"nftstake/core/runtime"
	"nftstake/core/types"
	"nftstake/native/staking"
	"nftstake/native/token"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeNotFound       = -32004
	codeDuplicateTx    = -32010
	codeNotAdmitted    = -32011
	codeRateLimited    = -32020
	codeFaucetDisabled = -32021
	codeInvalidTx      = -32030
	codeRuntimeFault   = -32031
	codePrecondition   = -32040
	codeDerivation     = -32041
	codeCustody        = -32042
	codeCapacity       = -32043
)

// txErrorClass maps a ledger error to an HTTP status, JSON-RPC code and a
// stable message. The wrapped error text goes into the data field.
func txErrorClass(err error) (int, int, string) {
	switch {
	case errors.Is(err, runtime.ErrDuplicateTransaction):
		return http.StatusConflict, codeDuplicateTx, "transaction has already been processed"
	case errors.Is(err, runtime.ErrNotAdmitted):
		return http.StatusServiceUnavailable, codeNotAdmitted, "transaction not admitted"
	case errors.Is(err, types.ErrNoInstructions),
		errors.Is(err, types.ErrMissingSignature),
		errors.Is(err, types.ErrInvalidSignature),
		errors.Is(err, types.ErrSignatureCount),
		errors.Is(err, types.ErrZeroFeePayer):
		return http.StatusBadRequest, codeInvalidTx, "invalid transaction"
	case errors.Is(err, staking.ErrDerivationMismatch):
		return http.StatusUnprocessableEntity, codeDerivation, "derivation_mismatch"
	case errors.Is(err, staking.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity, codeCapacity, "capacity_exceeded"
	case errors.Is(err, staking.ErrInsufficientCustody),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, runtime.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, codeCustody, "insufficient_custody"
	case errors.Is(err, staking.ErrPreconditionViolation),
		errors.Is(err, runtime.ErrAccountAlreadyInUse):
		return http.StatusUnprocessableEntity, codePrecondition, "precondition_violation"
	}
	var ixErr *runtime.InstructionError
	if errors.As(err, &ixErr) {
		return http.StatusUnprocessableEntity, codeRuntimeFault, "instruction failed"
	}
	if errors.Is(err, runtime.ErrInvalidInstructionData) {
		return http.StatusBadRequest, codeInvalidParams, "invalid parameters"
	}
	return http.StatusInternalServerError, codeServerError, "transaction failed"
}

func writeTxError(w http.ResponseWriter, id interface{}, err error) {
	status, code, message := txErrorClass(err)
	writeError(w, status, id, code, message, err.Error())
}
