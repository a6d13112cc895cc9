package arca

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ProductRow is one published item joined with prices, brand and selling unit
type ProductRow struct {
	Code           string              `gorm:"column:Cd_AR"`
	WebDescription sql.NullString      `gorm:"column:WebDescrizione"`
	WebNotes       sql.NullString      `gorm:"column:WebNote_AR"`
	Unit           string              `gorm:"column:Cd_ARMisura"`
	Factor         decimal.NullDecimal `gorm:"column:Fattore"`
	Height         decimal.NullDecimal `gorm:"column:Altezza"`
	Length         decimal.NullDecimal `gorm:"column:Lunghezza"`
	Width          decimal.NullDecimal `gorm:"column:Larghezza"`
	GrossWeight    decimal.NullDecimal `gorm:"column:PesoLordo"`
	Attributes     sql.NullString      `gorm:"column:Attributi"`
	CategoryID     sql.NullInt64       `gorm:"column:Id_ARCategoria"`
	CategoryName   sql.NullString      `gorm:"column:DescrizioneCategoria"`
	BrandName      sql.NullString      `gorm:"column:DescrizioneMarca"`
	RetailPrice    decimal.NullDecimal `gorm:"column:PrezzoRetail"`
	WholesalePrice decimal.NullDecimal `gorm:"column:PrezzoWholesale"`
}

// StockLevel is the available quantity of an item across warehouses
type StockLevel struct {
	Code     string          `gorm:"column:Cd_AR"`
	Quantity decimal.Decimal `gorm:"column:QuantitaDisp"`
	Factor   decimal.Decimal `gorm:"column:UMFatt"`
}

// CategoryRow is one ARCategoria row
type CategoryRow struct {
	ID       int           `gorm:"column:Id_ARCategoria"`
	ParentID sql.NullInt64 `gorm:"column:Id_ARCategoria_P"`
	Name     string        `gorm:"column:Descrizione"`
}

// Image is one stored picture of an item
type Image struct {
	Row          int    `gorm:"column:Riga"`
	Data         []byte `gorm:"column:Picture1Raw"`
	OriginalFile string `gorm:"column:Picture1OriginalFile"`
}

// selling unit per item: sales unit first, then purchase unit, then the default row
const unitSubquery = `SELECT Cd_AR, Cd_ARMisura, UMFatt FROM (
	SELECT Cd_AR, Cd_ARMisura, UMFatt,
		ROW_NUMBER() OVER (PARTITION BY Cd_AR ORDER BY
			CASE WHEN TipoARMisura = 'V' THEN 1 WHEN TipoARMisura = 'E' THEN 2 ELSE 3 END,
			DefaultMisura DESC) AS rn
	FROM ARARMisura
	WHERE TipoARMisura IN ('V', 'E') OR DefaultMisura = 1
) AS ranked WHERE rn = 1`

// LatestRevision returns the newest published revision of a price list
func (s *Store) LatestRevision(ctx context.Context, listCode string) (int64, bool, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Raw(`SELECT TOP 1 Id_LSRevisione FROM LSRevisione
		WHERE DataPubblicazione IS NOT NULL AND DataPubblicazione > '1990-01-01' AND Cd_LS = ?
		ORDER BY DataPubblicazione DESC`, listCode).Scan(&ids).Error
	if err != nil {
		return 0, false, fmt.Errorf("latest revision of %s: %w", listCode, err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// StockLevels aggregates the available stock of the fiscal year by item
func (s *Store) StockLevels(ctx context.Context, year int) (map[string]StockLevel, error) {
	var rows []StockLevel
	err := s.db.WithContext(ctx).Raw(`SELECT g.Cd_AR, SUM(g.QuantitaDisp) AS QuantitaDisp, u.UMFatt
		FROM MGDisp(?) AS g
		INNER JOIN (`+unitSubquery+`) AS u ON g.Cd_AR = u.Cd_AR
		GROUP BY g.Cd_AR, u.UMFatt`, strconv.Itoa(year)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stock levels %d: %w", year, err)
	}

	levels := make(map[string]StockLevel, len(rows))
	for _, r := range rows {
		levels[r.Code] = r
	}
	return levels, nil
}

// ProductRows returns the published, non-obsolete items priced in the retail revision.
// The wholesale price and brand are optional; items without a selling unit are excluded.
func (s *Store) ProductRows(ctx context.Context, retailRevision, wholesaleRevision int64) ([]ProductRow, error) {
	var rows []ProductRow
	err := s.db.WithContext(ctx).Raw(`SELECT AR.Cd_AR, AR.WebDescrizione, AR.WebNote_AR,
			ARMisura.Cd_ARMisura, ARMisura.UMFatt AS Fattore,
			AR.Altezza, AR.Lunghezza, AR.Larghezza, AR.PesoLordo, AR.Attributi, AR.Id_ARCategoria,
			ARCategoria.Descrizione AS DescrizioneCategoria,
			ARMarca.Descrizione AS DescrizioneMarca,
			Retail.Prezzo AS PrezzoRetail, Wholesale.Prezzo AS PrezzoWholesale
		FROM AR
		INNER JOIN LSArticolo AS Retail ON AR.Cd_AR = Retail.Cd_AR AND Retail.Id_LSRevisione = ?
		LEFT JOIN LSArticolo AS Wholesale ON AR.Cd_AR = Wholesale.Cd_AR AND Wholesale.Id_LSRevisione = ?
		LEFT JOIN ARMarca ON AR.Cd_ARMarca = ARMarca.Cd_ARMarca
		LEFT JOIN ARCategoria ON AR.Id_ARCategoria = ARCategoria.Id_ARCategoria
		INNER JOIN (`+unitSubquery+`) AS ARMisura ON AR.Cd_AR = ARMisura.Cd_AR
		WHERE AR.Obsoleto = 0 AND AR.WebB2CPubblica = 1`, retailRevision, wholesaleRevision).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("product rows: %w", err)
	}
	return rows, nil
}

// AttributeNames returns the descriptions of the given attribute ids
func (s *Store) AttributeNames(ctx context.Context, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		ID          int    `gorm:"column:Id_Attributo"`
		Description string `gorm:"column:Descrizione"`
	}
	err := s.db.WithContext(ctx).Raw(`SELECT Id_Attributo, Descrizione FROM Attributo WHERE Id_Attributo IN ?`, ids).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("attribute names: %w", err)
	}
	for _, r := range rows {
		names[r.ID] = r.Description
	}
	return names, nil
}

// ChildCategories returns the categories whose parent is one of parentIDs
func (s *Store) ChildCategories(ctx context.Context, parentIDs []int) ([]CategoryRow, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var rows []CategoryRow
	err := s.db.WithContext(ctx).Raw(`SELECT Id_ARCategoria, Id_ARCategoria_P, Descrizione FROM ARCategoria
		WHERE Id_ARCategoria_P IN ? ORDER BY Id_ARCategoria`, parentIDs).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("child categories: %w", err)
	}
	return rows, nil
}

// BrandNames returns the distinct brands of the published items priced in the revision
func (s *Store) BrandNames(ctx context.Context, retailRevision int64) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Raw(`SELECT DISTINCT ARMarca.Descrizione FROM ARMarca
		INNER JOIN AR ON ARMarca.Cd_ARMarca = AR.Cd_ARMarca
		INNER JOIN LSArticolo ON AR.Cd_AR = LSArticolo.Cd_AR AND LSArticolo.Id_LSRevisione = ?
		WHERE AR.Obsoleto = 0 AND AR.WebB2CPubblica = 1
		ORDER BY ARMarca.Descrizione`, retailRevision).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("brand names: %w", err)
	}
	return names, nil
}

// ProductImages returns the pictures of an item in row order
func (s *Store) ProductImages(ctx context.Context, code string) ([]Image, error) {
	var images []Image
	err := s.db.WithContext(ctx).Raw(`SELECT Riga, Picture1Raw, Picture1OriginalFile FROM ARImg
		WHERE Cd_AR = ? ORDER BY Riga`, code).Scan(&images).Error
	if err != nil {
		return nil, fmt.Errorf("images of %s: %w", code, err)
	}
	return images, nil
}

// IsFictitious reports whether an item is flagged Fittizio (no stock movements).
// Unknown items are reported as fictitious so no movement is written for them.
func (s *Store) IsFictitious(ctx context.Context, code string) (bool, error) {
	var flags []int
	err := s.db.WithContext(ctx).Raw(`SELECT Fittizio FROM AR WHERE Cd_AR = ?`, code).Scan(&flags).Error
	if err != nil {
		return false, fmt.Errorf("fictitious flag of %s: %w", code, err)
	}
	if len(flags) == 0 {
		return true, nil
	}
	return flags[0] != 0, nil
}
