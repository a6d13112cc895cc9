package arca

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Customer is the part of a CF row compared against the store's billing address
type Customer struct {
	Code        string         `gorm:"column:Cd_CF"`
	Description sql.NullString `gorm:"column:Descrizione"`
	Address     sql.NullString `gorm:"column:Indirizzo"`
	City        sql.NullString `gorm:"column:Localita"`
	PostCode    sql.NullString `gorm:"column:Cap"`
	VATNumber   sql.NullString `gorm:"column:PartitaIva"`
	TaxID       sql.NullString `gorm:"column:CodiceFiscale"`
}

// Fields returns the non-null columns keyed by lower-case column name
func (c *Customer) Fields() map[string]string {
	fields := map[string]string{}
	add := func(name string, v sql.NullString) {
		if v.Valid {
			fields[name] = v.String
		}
	}
	add("descrizione", c.Description)
	add("indirizzo", c.Address)
	add("localita", c.City)
	add("cap", c.PostCode)
	add("partitaiva", c.VATNumber)
	add("codicefiscale", c.TaxID)
	return fields
}

// NewCustomer is a CF row created from a store order
type NewCustomer struct {
	Code        string
	Description string
	Address     string
	City        string
	PostCode    string
	Province    string
	Country     string
	VATNumber   string
	TaxID       string
	FPRCode     *string
	CompanyType string // G with a VAT number, F otherwise
	Note        string
}

// Contact is a CFContatto row
type Contact struct {
	CustomerCode string
	TypeID       int
	Name         string
	Sequence     int
	Phone        string
	Email        string
}

// FindCustomerByTaxID looks up a customer by upper-cased fiscal code
func (s *Store) FindCustomerByTaxID(ctx context.Context, taxID string) (*Customer, error) {
	var rows []Customer
	err := s.db.WithContext(ctx).Raw(`SELECT TOP 1 Cd_CF, Descrizione, Indirizzo, Localita, Cap, PartitaIva, CodiceFiscale
		FROM CF WHERE CodiceFiscale = ?`, strings.ToUpper(taxID)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find customer %s: %w", taxID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// MaxCustomerNumber returns the highest numeric part of the C0NNNNN customer codes
func (s *Store) MaxCustomerNumber(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := s.db.WithContext(ctx).Raw(`SELECT MAX(CAST(SUBSTRING(Cd_CF, 3, LEN(Cd_CF) - 2) AS INT)) AS last_id
		FROM CF WHERE SUBSTRING(Cd_CF, 1, 2) = 'C0' AND LEN(Cd_CF) = 7`).Row().Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max customer code: %w", err)
	}
	return int(max.Int64), nil
}

// InsertCustomer writes a new CF row
func (s *Store) InsertCustomer(ctx context.Context, c *NewCustomer) error {
	var fpr interface{}
	if c.FPRCode != nil {
		fpr = *c.FPRCode
	}
	country := c.Country
	if country == "" {
		country = "IT"
	}

	return s.insert(ctx, "CF", []column{
		{"Cd_CF", c.Code},
		{"Descrizione", c.Description},
		{"Indirizzo", c.Address},
		{"Localita", c.City},
		{"Cap", c.PostCode},
		{"Cd_Provincia", c.Province},
		{"Cd_Nazione", country},
		{"PartitaIva", c.VATNumber},
		{"CodiceFiscale", c.TaxID},
		{"CodiceFPR", fpr},
		{"TipoDitta", c.CompanyType},
		{"Cd_VL", "EUR"},
		{"Cd_DOPorto", "EXW"},
		{"Cd_DOSped", "02"},
		{"Id_Lingua", "1040"},
		{"Fido", "1"},
		{"Note_CF", c.Note},
		{"Cd_Nazione_Destinazione", "IT"},
		{"Elenchi", "1"},
		{"Iban", "IT"},
		{"Cd_NazioneIva", "IT"},
		{"Cd_CGConto_Mastro", "11010101001"},
	})
}

// ContactExists reports whether an identical contact row is already stored
func (s *Store) ContactExists(ctx context.Context, c Contact) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM CFContatto
		WHERE Cd_CF = ? AND Id_CFContattoTipo = ? AND Nome = ? AND Sequenza = ? AND Email = ?`,
		c.CustomerCode, c.TypeID, c.Name, c.Sequence, c.Email).Row().Scan(&count)
	if err != nil {
		return false, fmt.Errorf("contact lookup %s: %w", c.CustomerCode, err)
	}
	return count > 0, nil
}

// InsertContact writes a CFContatto row
func (s *Store) InsertContact(ctx context.Context, c Contact) error {
	return s.insert(ctx, "CFContatto", []column{
		{"Cd_CF", c.CustomerCode},
		{"Id_CFContattoTipo", c.TypeID},
		{"Nome", c.Name},
		{"Sequenza", c.Sequence},
		{"Telefono", c.Phone},
		{"Email", c.Email},
	})
}
