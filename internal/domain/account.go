package domain

// BankAccountDetails is the routing information a destination account id
// resolves to. Returned by the account directory and used verbatim as the
// payment destination.
type BankAccountDetails struct {
	HolderName    string `json:"account_holder_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	Currency      string `json:"currency"`
}

// CompanyAccount is the fixed settlement account payments originate from.
// Loaded from configuration.
type CompanyAccount struct {
	Name          string
	AccountNumber string
	RoutingNumber string
	Currency      string
}
