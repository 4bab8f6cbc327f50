package engine

// ReasonCode is the closed enumeration attached to every cycle outcome and
// invariant failure. Codes are stable; audit tooling matches on them.
type ReasonCode string

const (
	ReasonNone ReasonCode = ""

	// Throttle gate.
	ReasonFirstSignal  ReasonCode = "FIRST_SIGNAL"
	ReasonConfigChange ReasonCode = "IMMEDIATE_ALERT_AFTER_CONFIG_CHANGE"
	ReasonForcedSignal ReasonCode = "FORCED_SIGNAL"
	ReasonPriceChange  ReasonCode = "PRICE_CHANGE_OK"
	ReasonTimeGate     ReasonCode = "THROTTLED_TIME_GATE"
	ReasonPriceGate    ReasonCode = "THROTTLED_PRICE_GATE"

	// Invariant validator.
	ReasonInvalidSymbol   ReasonCode = "INVALID_SYMBOL"
	ReasonInvalidSide     ReasonCode = "INVALID_SIDE"
	ReasonInvalidQuantity ReasonCode = "INVALID_QUANTITY"
	ReasonInvalidPrice    ReasonCode = "INVALID_PRICE"
	ReasonMissingFill     ReasonCode = "MISSING_FILL_CONFIRMATION"
	ReasonNoPosition      ReasonCode = "NO_POSITION_FOR_SELL"

	// Order lifecycle.
	ReasonFillNotConfirmed ReasonCode = "FILL_NOT_CONFIRMED"
	ReasonBracketPlaced    ReasonCode = "BRACKET_PLACED"
	ReasonBracketExists    ReasonCode = "BRACKET_EXISTS"
	ReasonDuplicateAlert   ReasonCode = "DUPLICATE_ALERT"
	ReasonGatewayRejected  ReasonCode = "GATEWAY_REJECTED"
	ReasonCircuitOpen      ReasonCode = "CIRCUIT_OPEN"
	ReasonKillSwitch       ReasonCode = "KILL_SWITCH_ENGAGED"
	ReasonAlertDisabled    ReasonCode = "ALERT_DISABLED"
	ReasonTradeDisabled    ReasonCode = "TRADE_DISABLED"
	ReasonBelowMinQuantity ReasonCode = "BELOW_MIN_QUANTITY"
)

// OutcomeStatus is the discriminated result of one controller cycle.
type OutcomeStatus string

const (
	StatusEmitted      OutcomeStatus = "EMITTED"
	StatusBlocked      OutcomeStatus = "BLOCKED"
	StatusOrderSkipped OutcomeStatus = "ORDER_SKIPPED"
	StatusOrderCreated OutcomeStatus = "ORDER_CREATED"
	StatusSLTPCreated  OutcomeStatus = "SLTP_CREATED"
	StatusSLTPFailed   OutcomeStatus = "SLTP_FAILED"
)

// Outcome is what RunCycle returns and what downstream notification and
// audit logging consume. Expected conditions (throttled, deduped, skipped)
// travel here, never as errors.
type Outcome struct {
	Status        OutcomeStatus
	Reason        ReasonCode
	CorrelationID string
	Message       string
}
