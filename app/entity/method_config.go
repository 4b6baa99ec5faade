package entity

// MethodConfig is the merchant-side configuration of the GoCardless method.
type MethodConfig struct {
	TestMode            bool
	AccessToken         string
	CreditorID          string
	AllowOneOffPayments bool
	EndpointOverride    string
	InputSettings       InputSettings
}

// InputSettings lists, per customer field, the payment context keys that may
// supply its value. The first non-empty key wins.
type InputSettings map[string][]string

func DefaultInputSettings() InputSettings {
	return InputSettings{
		"given_name":    {"first_name", "given_name"},
		"family_name":   {"last_name", "family_name"},
		"company_name":  {"company_name"},
		"email":         {"email"},
		"phone_number":  {"phone_number", "mobile_number"},
		"address_line1": {"street_address", "address_line1"},
		"address_line2": {"street_address2", "address_line2"},
		"address_line3": {"street_address3", "address_line3"},
		"city":          {"city"},
		"postal_code":   {"postcode", "zip_code", "postal_code"},
		"region":        {"state", "region"},
		"country_code":  {"country", "country_code"},
	}
}
