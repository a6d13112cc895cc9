package arca

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType of the customer orders written by the importer
const DocumentType = "OC"

// DocumentHeader is a DoTes row
type DocumentHeader struct {
	Number       int
	Date         time.Time
	Year         int
	CustomerCode string
	PaymentCode  string
	BankAccount  string
	RetailList   string
	AdvancedList string
	Agent        string
	GoodsLines   int
	FeeLines     int
	Deposit      decimal.Decimal
	FooterNote   string
	Reference    string
}

// DocumentLine is a DoRig row
type DocumentLine struct {
	DocumentID   int64
	Number       int
	Date         time.Time
	Year         int
	CustomerCode string
	Row          int
	ItemCode     string
	Description  string
	Unit         string
	RevenueAcct  string
	TaxCode      string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Total        decimal.Decimal
}

// Movement is an MGMov warehouse movement for a document line
type Movement struct {
	LineID   int64
	Date     time.Time
	Year     int
	ItemCode string
	Quantity decimal.Decimal
	Value    decimal.Decimal
}

// ShippingFee is a DoRigSpesa row
type ShippingFee struct {
	DocumentID int64
	Date       time.Time
	TaxCode    string
	Account    string
	Amount     decimal.Decimal
}

// DocumentTotals is the DOTotali row of a document
type DocumentTotals struct {
	DocumentID int64
	Taxable    decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	GoodsGross decimal.Decimal
	Shipping   decimal.Decimal
}

// TaxGroup is a DOIva row, one per revenue account
type TaxGroup struct {
	DocumentID int64
	TaxCode    string
	TaxRate    string
	Account    string
	Taxable    decimal.Decimal
	Tax        decimal.Decimal
}

// MaxDocumentNumber returns the highest NumeroDoc of a document type in a fiscal year
func (s *Store) MaxDocumentNumber(ctx context.Context, docType string, year int) (int, error) {
	var max sql.NullInt64
	err := s.db.WithContext(ctx).Raw(`SELECT MAX(NumeroDoc) FROM DoTes WHERE Cd_Do = ? AND EsAnno = ?`,
		docType, year).Row().Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max document number: %w", err)
	}
	return int(max.Int64), nil
}

// DocumentExists reports whether a document already references the store order
func (s *Store) DocumentExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM DoTes WHERE NumeroDocRif = ?`, reference).Row().Scan(&count)
	if err != nil {
		return false, fmt.Errorf("document lookup %s: %w", reference, err)
	}
	return count > 0, nil
}

// InsertHeader writes the DoTes row and returns its identity
func (s *Store) InsertHeader(ctx context.Context, h *DocumentHeader) (int64, error) {
	date := h.Date.Format("2006-01-02")
	insert, args := insertSQL("DoTes", []column{
		{"Cd_Do", DocumentType},
		{"TipoDocumento", "O"},
		{"DoBitMask", 2},
		{"Cd_CF", h.CustomerCode},
		{"CliFor", "C"},
		{"Cd_CN", "D01"},
		{"Contabile", 0},
		{"TipoFattura", 0},
		{"ImportiIvati", 0},
		{"IvaSospesa", 0},
		{"Esecutivo", 1},
		{"Prelevabile", 1},
		{"Modificabile", 1},
		{"ModificabilePdf", 1},
		{"NumeroDoc", h.Number},
		{"DataDoc", date},
		{"Cd_MGEsercizio", h.Year},
		{"EsAnno", h.Year},
		{"Cd_CGConto_Banca", h.BankAccount},
		{"Cd_VL", "EUR"},
		{"Decimali", 2},
		{"DecimaliPrzUn", 3},
		{"Cambio", 1},
		{"MagPFlag", 0},
		{"MagAFlag", 0},
		{"Cd_LS_1", h.RetailList},
		{"Cd_LS_2", h.AdvancedList},
		{"Cd_Agente_1", h.Agent},
		{"Cd_PG", h.PaymentCode},
		{"Colli", 0},
		{"PesoLordo", 0},
		{"PesoNetto", 0},
		{"VolumeTotale", 0},
		{"AbbuonoV", 0},
		{"RigheMerce", h.GoodsLines},
		{"RigheSpesa", h.FeeLines},
		{"RigheMerceEvadibili", h.GoodsLines},
		{"AccontoPerc", 100},
		{"AccontoV", h.Deposit},
		{"CGCorrispondenzaIvaMerce", 1},
		{"IvaSplit", 0},
		{"NotePiede", h.FooterNote},
		{"Cd_DoTrasporto", "01"},
		{"Cd_DoAspBene", "AV"},
		{"NumeroDocRif", h.Reference},
		{"DataDocRif", date},
	})

	var id sql.NullInt64
	err := s.db.WithContext(ctx).
		Raw("SET NOCOUNT ON; "+insert+"; SELECT CAST(SCOPE_IDENTITY() AS INT) AS id", args...).
		Row().Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document %s: %w", h.Reference, err)
	}
	if !id.Valid || id.Int64 == 0 {
		return 0, fmt.Errorf("insert document %s: no identity returned", h.Reference)
	}
	return id.Int64, nil
}

// InsertLine writes a DoRig row and returns its Id_DORig.
// The table trigger must be disabled by the caller.
func (s *Store) InsertLine(ctx context.Context, l *DocumentLine) (int64, error) {
	err := s.insert(ctx, "DoRig", []column{
		{"ID_DOTes", l.DocumentID},
		{"Contabile", 0},
		{"NumeroDoc", l.Number},
		{"DataDoc", l.Date.Format("2006-01-02")},
		{"Cd_MGEsercizio", l.Year},
		{"Cd_DO", DocumentType},
		{"TipoDocumento", "O"},
		{"Cd_CF", l.CustomerCode},
		{"Cd_VL", "EUR"},
		{"Cd_MG_P", "MP"},
		{"Cambio", 1},
		{"Decimali", 2},
		{"DecimaliPrzUn", 3},
		{"Riga", l.Row},
		{"Cd_MGCausale", "090"},
		{"Cd_AR", l.ItemCode},
		{"Descrizione", l.Description},
		{"Cd_ARMisura", l.Unit},
		{"Cd_CGConto", l.RevenueAcct},
		{"Cd_Aliquota", l.TaxCode},
		{"Cd_Aliquota_R", l.TaxCode},
		{"Qta", l.Quantity},
		{"FattoreToUM1", 1},
		{"QtaEvadibile", l.Quantity},
		{"QtaEvasa", 0},
		{"PrezzoUnitarioV", l.UnitPrice},
		{"PrezzoTotaleV", l.Total},
		{"PrezzoTotaleMovE", l.Total},
		{"Omaggio", 1},
		{"Evasa", 0},
		{"Evadibile", 1},
		{"Esecutivo", 1},
		{"FattoreScontoRiga", 0},
		{"FattoreScontoTotale", 0},
		{"Id_LSArticolo", nil},
	})
	if err != nil {
		return 0, err
	}

	// the trigger forbids OUTPUT, read the identity back by document and row
	var id sql.NullInt64
	err = s.db.WithContext(ctx).Raw(`SELECT Id_DORig FROM DoRig WHERE ID_DOTes = ? AND Riga = ?`,
		l.DocumentID, l.Row).Row().Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read back line %d of document %d: %w", l.Row, l.DocumentID, err)
	}
	return id.Int64, nil
}

// InsertMovement writes an MGMov row. The table trigger must be disabled by the caller.
func (s *Store) InsertMovement(ctx context.Context, m *Movement) error {
	return s.insert(ctx, "MGMov", []column{
		{"DataMov", m.Date.Format("2006-01-02")},
		{"Id_DoRig", m.LineID},
		{"Cd_MGEsercizio", m.Year},
		{"Cd_AR", m.ItemCode},
		{"Cd_MG", "MP"},
		{"Id_MGMovDes", 18},
		{"PartenzaArrivo", "P"},
		{"PadreComponente", "P"},
		{"EsplosioneDB", 0},
		{"Quantita", m.Quantity},
		{"Valore", m.Value},
		{"Cd_MGCausale", "DDT"},
		{"Ini", 0},
		{"Ret", 0},
		{"CarA", 0},
		{"CarP", 0},
		{"CarT", 0},
		{"ScaV", 1},
		{"ScaP", 0},
		{"ScaT", 0},
	})
}

// InsertShippingFee writes the DoRigSpesa row. The table trigger must be disabled by the caller.
func (s *Store) InsertShippingFee(ctx context.Context, f *ShippingFee) error {
	return s.insert(ctx, "DoRigSpesa", []column{
		{"Id_DoTes", f.DocumentID},
		{"Contabile", 0},
		{"Esecutivo", 1},
		{"DataDoc", f.Date.Format("2006-01-02")},
		{"Riga", 1},
		{"Descrizione", "Spese di spedizione"},
		{"TipoRigaSpesa", "T"},
		{"Cd_VL", "EUR"},
		{"Cd_Aliquota", f.TaxCode},
		{"Cd_Aliquota_E", f.TaxCode},
		{"Cd_Aliquota_R", f.TaxCode},
		{"Cd_CGConto", f.Account},
		{"Decimali", 2},
		{"Cambio", 1},
		{"ImportoV", f.Amount},
		{"ImportoEvadibileV", f.Amount},
	})
}

// TotalsExist reports whether the document already has its DOTotali row
func (s *Store) TotalsExist(ctx context.Context, documentID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM DOTotali WHERE Id_DoTes = ?`, documentID).Row().Scan(&count)
	if err != nil {
		return false, fmt.Errorf("totals lookup %d: %w", documentID, err)
	}
	return count > 0, nil
}

// InsertTotals writes the DOTotali row
func (s *Store) InsertTotals(ctx context.Context, t *DocumentTotals) error {
	return s.insert(ctx, "DOTotali", []column{
		{"Id_DoTes", t.DocumentID},
		{"Cambio", 1},
		{"AbbuonoV", 0},
		{"AccontoV", t.Total},
		{"AccontoE", t.Total},
		{"TotImponibileV", t.Taxable},
		{"TotImponibileE", t.Taxable},
		{"TotImpostaV", t.Tax},
		{"TotImpostaE", t.Tax},
		{"TotDocumentoV", t.Total},
		{"TotDocumentoE", t.Total},
		{"TotMerceLordoV", t.GoodsGross},
		{"TotMerceNettoV", t.Taxable},
		{"TotEsenteV", 0},
		{"TotSpese_TV", 0},
		{"TotSpese_NV", 0},
		{"TotSpese_MV", 0},
		{"TotSpese_BV", 0},
		{"TotSpese_AV", 0},
		{"TotSpese_VV", t.Shipping},
		{"TotSpese_ZV", 0},
		{"Totspese_RV", 0},
		{"TotScontoV", 0},
		{"TotOmaggio_MV", 0},
		{"TotOmaggio_IV", 0},
		{"TotaPagareV", 0},
		{"TotaPagareE", 0},
		{"TotProvvigione_1V", 0},
		{"TotProvvigione_2V", 0},
		{"RA_ImportoV", 0},
		{"TotImpostaRCV", 0},
		{"TotImpostaSPV", 0},
	})
}

// InsertTaxGroup writes a DOIva row
func (s *Store) InsertTaxGroup(ctx context.Context, g *TaxGroup) error {
	return s.insert(ctx, "DOIva", []column{
		{"Id_DOTes", g.DocumentID},
		{"Cd_Aliquota", g.TaxCode},
		{"Aliquota", g.TaxRate},
		{"Cambio", "1.000000"},
		{"ImponibileV", g.Taxable},
		{"ImpostaV", g.Tax},
		{"Omaggio", 1},
		{"Cd_CGConto", g.Account},
	})
}
