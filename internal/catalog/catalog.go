// Package catalog carries the fixed PIHPS request catalog: the ten
// commodity categories, their quality-level subcommodities, and the four
// market channels. The upstream portal addresses series by these codes;
// the dimension tables are seeded from the same lists.
package catalog

// Item identifies one requestable series.
type Item struct {
	// Code is the upstream series code: "cat_N" for a category
	// aggregate, "com_N" for a quality variant.
	Code string
	// CommodityCode is the owning category code. Equal to Code for
	// category items.
	CommodityCode string
	// Name is the display name; for subcommodities it doubles as the
	// subcategory dimension name.
	Name string
	// Subcommodity is true for quality variants.
	Subcommodity bool
}

// MarketTypes maps the upstream market channel code to its display name.
var MarketTypes = map[int]string{
	1: "Pasar Tradisional",
	2: "Pasar Modern",
	3: "Pedagang Besar",
	4: "Produsen",
}

var categories = []Item{
	{Code: "cat_1", CommodityCode: "cat_1", Name: "Beras"},
	{Code: "cat_2", CommodityCode: "cat_2", Name: "Daging Ayam"},
	{Code: "cat_3", CommodityCode: "cat_3", Name: "Daging Sapi"},
	{Code: "cat_4", CommodityCode: "cat_4", Name: "Telur Ayam"},
	{Code: "cat_5", CommodityCode: "cat_5", Name: "Bawang Merah"},
	{Code: "cat_6", CommodityCode: "cat_6", Name: "Bawang Putih"},
	{Code: "cat_7", CommodityCode: "cat_7", Name: "Cabai Merah"},
	{Code: "cat_8", CommodityCode: "cat_8", Name: "Cabai Rawit"},
	{Code: "cat_9", CommodityCode: "cat_9", Name: "Minyak Goreng"},
	{Code: "cat_10", CommodityCode: "cat_10", Name: "Gula Pasir"},
}

var subcommodities = []Item{
	{Code: "com_1", CommodityCode: "cat_1", Name: "Beras Kualitas Bawah I", Subcommodity: true},
	{Code: "com_2", CommodityCode: "cat_1", Name: "Beras Kualitas Bawah II", Subcommodity: true},
	{Code: "com_3", CommodityCode: "cat_1", Name: "Beras Kualitas Medium I", Subcommodity: true},
	{Code: "com_4", CommodityCode: "cat_1", Name: "Beras Kualitas Medium II", Subcommodity: true},
	{Code: "com_5", CommodityCode: "cat_1", Name: "Beras Kualitas Super I", Subcommodity: true},
	{Code: "com_6", CommodityCode: "cat_1", Name: "Beras Kualitas Super II", Subcommodity: true},
	{Code: "com_7", CommodityCode: "cat_2", Name: "Daging Ayam Ras Segar", Subcommodity: true},
	{Code: "com_8", CommodityCode: "cat_3", Name: "Daging Sapi Kualitas 1", Subcommodity: true},
	{Code: "com_9", CommodityCode: "cat_3", Name: "Daging Sapi Kualitas 2", Subcommodity: true},
	{Code: "com_10", CommodityCode: "cat_4", Name: "Telur Ayam Ras Segar", Subcommodity: true},
	{Code: "com_11", CommodityCode: "cat_5", Name: "Bawang Merah Ukuran Sedang", Subcommodity: true},
	{Code: "com_12", CommodityCode: "cat_6", Name: "Bawang Putih Ukuran Sedang", Subcommodity: true},
	{Code: "com_13", CommodityCode: "cat_7", Name: "Cabai Merah Besar", Subcommodity: true},
	{Code: "com_14", CommodityCode: "cat_7", Name: "Cabai Merah Keriting", Subcommodity: true},
	{Code: "com_15", CommodityCode: "cat_8", Name: "Cabai Rawit Hijau", Subcommodity: true},
	{Code: "com_16", CommodityCode: "cat_8", Name: "Cabai Rawit Merah", Subcommodity: true},
	{Code: "com_17", CommodityCode: "cat_9", Name: "Minyak Goreng Curah", Subcommodity: true},
	{Code: "com_18", CommodityCode: "cat_9", Name: "Minyak Goreng Kemasan Bermerk 1", Subcommodity: true},
	{Code: "com_19", CommodityCode: "cat_9", Name: "Minyak Goreng Kemasan Bermerk 2", Subcommodity: true},
	{Code: "com_20", CommodityCode: "cat_10", Name: "Gula Pasir Kualitas Premium", Subcommodity: true},
	{Code: "com_21", CommodityCode: "cat_10", Name: "Gula Pasir Lokal", Subcommodity: true},
}

// Categories returns the ten category-level items in catalog order.
func Categories() []Item {
	out := make([]Item, len(categories))
	copy(out, categories)
	return out
}

// Subcommodities returns the 21 quality-level items in catalog order.
func Subcommodities() []Item {
	out := make([]Item, len(subcommodities))
	copy(out, subcommodities)
	return out
}

// Lookup finds an item by series code.
func Lookup(code string) (Item, bool) {
	for _, it := range categories {
		if it.Code == code {
			return it, true
		}
	}
	for _, it := range subcommodities {
		if it.Code == code {
			return it, true
		}
	}
	return Item{}, false
}
