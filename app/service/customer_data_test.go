package service

import (
	"testing"

	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

func TestPrefillCustomerDataFromContext(t *testing.T) {
	data := PrefillCustomerData(entity.CustomerData{}, map[string]string{
		"first_name":     "Ada",
		"family_name":    "Lovelace",
		"mobile_number":  "+44 20 7946 0000",
		"street_address": "12 Analytical Row",
		"zip_code":       "N1 9GU",
		"country":        "GB",
		"unrelated":      "ignored",
	}, nil)

	if data.GivenName != "Ada" || data.FamilyName != "Lovelace" {
		t.Fatalf("expected names from context, got %+v", data)
	}
	if data.PhoneNumber != "+44 20 7946 0000" {
		t.Fatalf("expected phone from mobile_number, got %q", data.PhoneNumber)
	}
	if data.AddressLine1 != "12 Analytical Row" || data.PostalCode != "N1 9GU" || data.CountryCode != "GB" {
		t.Fatalf("expected address from context, got %+v", data)
	}
	if data.Email != "" || data.City != "" {
		t.Fatalf("expected missing keys left empty, got %+v", data)
	}
}

func TestPrefillCustomerDataKeyOrder(t *testing.T) {
	data := PrefillCustomerData(entity.CustomerData{}, map[string]string{
		"postcode":    "  ",
		"zip_code":    "10115",
		"postal_code": "99999",
	}, nil)

	if data.PostalCode != "10115" {
		t.Fatalf("expected first non-empty key to win, got %q", data.PostalCode)
	}
}

func TestPrefillCustomerDataKeepsExplicitValues(t *testing.T) {
	data := PrefillCustomerData(entity.CustomerData{GivenName: "Grace"}, map[string]string{"first_name": "Ada"}, nil)
	if data.GivenName != "Grace" {
		t.Fatalf("expected explicit value kept, got %q", data.GivenName)
	}
}

func TestPrefillCustomerDataCustomSettings(t *testing.T) {
	settings := entity.InputSettings{"email": {"contact_email"}}
	data := PrefillCustomerData(entity.CustomerData{}, map[string]string{
		"contact_email": "ada@example.com",
		"first_name":    "Ada",
	}, settings)

	if data.Email != "ada@example.com" {
		t.Fatalf("expected email from custom key, got %q", data.Email)
	}
	if data.GivenName != "" {
		t.Fatalf("expected unconfigured field left empty, got %q", data.GivenName)
	}
}
