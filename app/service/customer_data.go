package service

import (
	"strings"

	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

// PrefillCustomerData fills empty customer fields from the payment context.
// Values set explicitly are kept; each missing field takes the first
// non-empty context key configured for it.
func PrefillCustomerData(explicit entity.CustomerData, context map[string]string, settings entity.InputSettings) entity.CustomerData {
	data := explicit
	if len(context) == 0 {
		return data
	}
	if settings == nil {
		settings = entity.DefaultInputSettings()
	}

	for field, target := range customerFields(&data) {
		if strings.TrimSpace(*target) != "" {
			continue
		}
		for _, key := range settings[field] {
			if value := strings.TrimSpace(context[key]); value != "" {
				*target = value
				break
			}
		}
	}

	return data
}

func customerFields(data *entity.CustomerData) map[string]*string {
	return map[string]*string{
		"given_name":    &data.GivenName,
		"family_name":   &data.FamilyName,
		"company_name":  &data.CompanyName,
		"email":         &data.Email,
		"phone_number":  &data.PhoneNumber,
		"address_line1": &data.AddressLine1,
		"address_line2": &data.AddressLine2,
		"address_line3": &data.AddressLine3,
		"city":          &data.City,
		"postal_code":   &data.PostalCode,
		"region":        &data.Region,
		"country_code":  &data.CountryCode,
	}
}
