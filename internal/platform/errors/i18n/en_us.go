package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown               = "UNKNOWN"
	CodeInvalidArgument       = "INVALID_ARGUMENT"
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeSpawnAlreadyPending   = "SPAWN_ALREADY_PENDING"
	CodeAlreadyClaimed        = "SPAWN_ALREADY_CLAIMED"
	CodeSpawnExpired          = "SPAWN_EXPIRED"
	CodeInsufficientFunds     = "INSUFFICIENT_FUNDS"
	CodeInsufficientInventory = "INSUFFICIENT_INVENTORY"
	CodeCooldownActive        = "COOLDOWN_ACTIVE"
	CodeTradeAlreadyActive    = "TRADE_ALREADY_ACTIVE"
	CodeInvalidTradeState     = "INVALID_TRADE_STATE"
	CodeStaleOffer            = "TRADE_STALE_OFFER"
	CodeInternal              = "INTERNAL"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown:         "Something went wrong",
		CodeInvalidArgument: "The request is invalid",

		CodeNotFound:      "The requested resource was not found",
		CodeAlreadyExists: "The resource already exists",

		// Spawn errors
		CodeSpawnAlreadyPending: "A spawn is already waiting in this channel",
		CodeAlreadyClaimed:      "Too slow! Someone else caught it first",
		CodeSpawnExpired:        "The spawn got away before anyone caught it",

		// Ledger errors
		CodeInsufficientFunds:     "Not enough coins: have {{.Balance}}, need {{.Required}}",
		CodeInsufficientInventory: "Not enough copies of {{.Item}}: have {{.Have}}, need {{.Need}}",

		// Cooldown errors
		CodeCooldownActive: "You need to wait {{.Remaining}} before doing that again",

		// Trade errors
		CodeTradeAlreadyActive: "There is already an active trade for {{.Actor}}",
		CodeInvalidTradeState:  "The trade is {{.State}} and does not allow {{.Operation}}",
		CodeStaleOffer:         "Offered items are no longer available: {{.Items}}",

		CodeInternal: "Something went wrong on our side",
	},
}
