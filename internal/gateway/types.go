package gateway

// Remote payment statuses as reported by the gateway.
const (
	StatusOpen     = "open"
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
	StatusFailed   = "failed"
)

// Business codes on the synchronous payment-creation response. The
// creation call itself is authoritative: result 1 with response code 100
// means approved.
const (
	ResultApproved       = 1
	ResponseCodeApproved = 100
)

// Amount is the gateway's money shape: a decimal string plus currency.
type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// Payment is the remote payment resource.
type Payment struct {
	ID             string                 `json:"id"`
	Status         string                 `json:"status"`
	Amount         Amount                 `json:"amount"`
	AmountRefunded *Amount                `json:"amountRefunded,omitempty"`
	Description    string                 `json:"description,omitempty"`
	Metadata       map[string]string      `json:"metadata,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Links          Links                  `json:"_links,omitempty"`

	// Synchronous approval codes, present on creation responses.
	Result       int `json:"result,omitempty"`
	ResponseCode int `json:"responseCode,omitempty"`
}

// Approved reports whether a synchronous creation response carries the
// authoritative approval codes.
func (p *Payment) Approved() bool {
	return p.Result == ResultApproved && p.ResponseCode == ResponseCodeApproved
}

// Links holds HAL-style related resources.
type Links struct {
	Checkout *Link `json:"checkout,omitempty"`
	Next     *Link `json:"next,omitempty"`
}

type Link struct {
	Href string `json:"href"`
}

// Refund is one remote refund of a payment.
type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

// Chargeback is one remote chargeback of a payment.
type Chargeback struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Amount Amount `json:"amount"`
}

// Token is the OAuth token endpoint response.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Organization is the connected gateway account.
type Organization struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale,omitempty"`
}

// Profile is one payment profile of the connected organization.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
}

// LineItem is one order position sent with a card payment.
type LineItem struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// CardFields are the buyer-entered card details, read back from the
// checkout session and never from request-body free text.
type CardFields struct {
	Type      string `json:"cc_type" form:"cc_type"`
	Number    string `json:"cc_number" form:"cc_number"`
	ExpMonth  int    `json:"cc_exp_month" form:"cc_exp_month"`
	ExpYear   int    `json:"cc_exp_year" form:"cc_exp_year"`
	CVV2      string `json:"cc_cvv2" form:"cc_cvv2"`
	FirstName string `json:"cc_first_name" form:"cc_first_name"`
	LastName  string `json:"cc_last_name" form:"cc_last_name"`
}

// CreatePaymentRequest is the payment-creation body. The redirect-flow
// fields and the synchronous card fields are both optional; which group
// is filled depends on the method.
type CreatePaymentRequest struct {
	Amount      Amount            `json:"amount"`
	Description string            `json:"description,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Locale      string            `json:"locale,omitempty"`
	Method      string            `json:"method,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ProfileID   string            `json:"profileId,omitempty"`
	Testmode    bool              `json:"testmode,omitempty"`

	// Synchronous card-payment fields.
	Login                string      `json:"x_login,omitempty"`
	PrivateKey           string      `json:"x_private_key,omitempty"`
	APISecret            string      `json:"x_api_secret,omitempty"`
	OrgID                string      `json:"x_org_id,omitempty"`
	Card                 *CardFields `json:"card,omitempty"`
	LineItems            []LineItem  `json:"line_items,omitempty"`
	DeviceFingerprintID  string      `json:"device_fingerprint_id,omitempty"`
}
