package models

import "strings"

// ShopRecord is one row of the output file. Field order is column order.
// A field that was not found on the page is the empty string.
type ShopRecord struct {
	Name        string `csv:"店舗名"`
	Category    string `csv:"ジャンル"`
	Tel         string `csv:"電話番号"`
	Email       string `csv:"メールアドレス"`
	Prefecture  string `csv:"都道府県"`
	City        string `csv:"市区町村"`
	Street      string `csv:"番地"`
	Building    string `csv:"建物名"`
	OfficialURL string `csv:"URL"`
	SSL         bool   `csv:"SSL"`

	// DetailURL is the shop's page on the directory site. Not written.
	DetailURL string `csv:"-"`
}

// Secure reports whether the official URL uses https.
func (r ShopRecord) Secure() bool {
	return strings.HasPrefix(r.OfficialURL, "https")
}

// WithOfficialURL returns a copy with the official URL replaced and SSL
// recomputed.
func (r ShopRecord) WithOfficialURL(u string) ShopRecord {
	r.OfficialURL = u
	r.SSL = r.Secure()
	return r
}

// Merge returns a copy of r where every non-empty text field of other
// replaces the corresponding field of r. DetailURL is kept from r.
func (r ShopRecord) Merge(other ShopRecord) ShopRecord {
	pick := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	pick(&r.Name, other.Name)
	pick(&r.Category, other.Category)
	pick(&r.Tel, other.Tel)
	pick(&r.Email, other.Email)
	pick(&r.Prefecture, other.Prefecture)
	pick(&r.City, other.City)
	pick(&r.Street, other.Street)
	pick(&r.Building, other.Building)
	pick(&r.OfficialURL, other.OfficialURL)
	r.SSL = r.Secure()
	return r
}
