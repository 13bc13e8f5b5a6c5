package qbo

// Wire shapes for the QuickBooks Online v3 API. Creates are always
// submitted as POST with the full entity payload; optional keys the API
// requires are sent as empty strings, never omitted.

type RefValue struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type EmailAddr struct {
	Address string `json:"Address"`
}

type TelephoneNumber struct {
	FreeFormNumber string `json:"FreeFormNumber"`
}

type PhysicalAddress struct {
	Line1 string `json:"Line1"`
}

type Customer struct {
	Id               string           `json:"Id,omitempty"`
	DisplayName      string           `json:"DisplayName"`
	CompanyName      string           `json:"CompanyName"`
	PrimaryEmailAddr *EmailAddr       `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *TelephoneNumber `json:"PrimaryPhone,omitempty"`
	BillAddr         *PhysicalAddress `json:"BillAddr,omitempty"`
}

type Vendor struct {
	Id               string           `json:"Id,omitempty"`
	DisplayName      string           `json:"DisplayName"`
	CompanyName      string           `json:"CompanyName"`
	PrimaryEmailAddr *EmailAddr       `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *TelephoneNumber `json:"PrimaryPhone,omitempty"`
	BillAddr         *PhysicalAddress `json:"BillAddr,omitempty"`
}

const (
	DetailTypeSalesItemLine           = "SalesItemLineDetail"
	DetailTypeAccountBasedExpenseLine = "AccountBasedExpenseLineDetail"
	DetailTypeDiscountLine            = "DiscountLineDetail"
)

type SalesItemLineDetail struct {
	ItemRef   *RefValue `json:"ItemRef,omitempty"`
	Qty       float64   `json:"Qty"`
	UnitPrice float64   `json:"UnitPrice"`
}

type AccountBasedExpenseLineDetail struct {
	AccountRef *RefValue `json:"AccountRef"`
}

type DiscountLineDetail struct {
	PercentBased bool `json:"PercentBased"`
}

type Line struct {
	Amount                        float64                        `json:"Amount"`
	DetailType                    string                         `json:"DetailType"`
	Description                   string                         `json:"Description,omitempty"`
	SalesItemLineDetail           *SalesItemLineDetail           `json:"SalesItemLineDetail,omitempty"`
	AccountBasedExpenseLineDetail *AccountBasedExpenseLineDetail `json:"AccountBasedExpenseLineDetail,omitempty"`
	DiscountLineDetail            *DiscountLineDetail            `json:"DiscountLineDetail,omitempty"`
}

type TxnTaxDetail struct {
	TotalTax float64 `json:"TotalTax"`
}

type Invoice struct {
	Id           string        `json:"Id,omitempty"`
	DocNumber    string        `json:"DocNumber"`
	TxnDate      string        `json:"TxnDate,omitempty"`
	DueDate      string        `json:"DueDate,omitempty"`
	CurrencyRef  *RefValue     `json:"CurrencyRef"`
	CustomerRef  *RefValue     `json:"CustomerRef,omitempty"`
	Line         []Line        `json:"Line"`
	TxnTaxDetail *TxnTaxDetail `json:"TxnTaxDetail"`
	PrivateNote  string        `json:"PrivateNote,omitempty"`
}

type Purchase struct {
	Id          string    `json:"Id,omitempty"`
	PaymentType string    `json:"PaymentType"`
	EntityRef   *RefValue `json:"EntityRef,omitempty"`
	AccountRef  *RefValue `json:"AccountRef,omitempty"`
	TxnDate     string    `json:"TxnDate,omitempty"`
	DocNumber   string    `json:"DocNumber"`
	CurrencyRef *RefValue `json:"CurrencyRef"`
	Line        []Line    `json:"Line"`
	PrivateNote string    `json:"PrivateNote,omitempty"`
}

type FaultError struct {
	Message string `json:"Message"`
	Detail  string `json:"Detail"`
	Code    string `json:"code"`
}

type Fault struct {
	Type   string       `json:"type"`
	Errors []FaultError `json:"Error"`
}

type faultEnvelope struct {
	Fault *Fault `json:"Fault"`
}

type queryResponse struct {
	QueryResponse struct {
		Customer      []Customer `json:"Customer"`
		Vendor        []Vendor   `json:"Vendor"`
		StartPosition int        `json:"startPosition"`
		MaxResults    int        `json:"maxResults"`
	} `json:"QueryResponse"`
}

type createCustomerResponse struct {
	Customer Customer `json:"Customer"`
}

type createVendorResponse struct {
	Vendor Vendor `json:"Vendor"`
}

type createInvoiceResponse struct {
	Invoice Invoice `json:"Invoice"`
}

type createPurchaseResponse struct {
	Purchase Purchase `json:"Purchase"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
