package margin

import "errors"

var (
	errNilState          = errors.New("margin engine: state not configured")
	errNilVault          = errors.New("margin engine: vault not configured")
	errNilLedger         = errors.New("margin engine: ledger not configured")
	errNilOffering       = errors.New("margin engine: loan offering required")
	errNilExchange       = errors.New("margin engine: exchange wrapper required")
	errReentrant         = errors.New("margin engine: reentrant call")
	errInvalidAmount     = errors.New("margin engine: amount must be positive")
	errPositionNotFound  = errors.New("margin engine: position does not exist")
	errPositionExists    = errors.New("margin engine: position id already used")
	errPositionExpired   = errors.New("margin engine: position past max duration")
	errUnauthorized      = errors.New("margin engine: unauthorized caller")
	errAlreadyCalled     = errors.New("margin engine: position already margin-called")
	errNotCalled         = errors.New("margin engine: position not margin-called")
	errNotRecoverable    = errors.New("margin engine: collateral not yet recoverable")
	errInsufficientSale  = errors.New("margin engine: counter-order cannot supply required owed asset")
	errDepositRequired   = errors.New("margin engine: computed deposit must be positive")
	errCollateralRatio   = errors.New("margin engine: held asset below minimum collateral ratio")
	errTermsMismatch     = errors.New("margin engine: loan offering terms tighten the position")
	errAssetMismatch     = errors.New("margin engine: loan offering asset pair differs from position")
	errDelegateRefused   = errors.New("margin engine: delegate refused consent")
	errDelegateTooDeep   = errors.New("margin engine: delegation chain too deep")
	errSelfTransfer      = errors.New("margin engine: transfer to current holder")
	errInvalidRecipient  = errors.New("margin engine: recipient address invalid")
	errOfferingCanceled  = errors.New("margin engine: loan offering fully consumed")
	errBuybackExceedsMax = errors.New("margin engine: buyback cost exceeds available held asset")
)
