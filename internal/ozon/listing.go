package ozon

// Attribute ids of the auto lamp category.
const (
	AttrBrand      int64 = 85
	AttrPartNumber int64 = 7236
	AttrType       int64 = 8229
	AttrCode       int64 = 9024
	AttrModel      int64 = 9048
)

// Listing is one item of the product import request.
type Listing struct {
	Attributes            []Attribute `json:"attributes"`
	Barcode               string      `json:"barcode"`
	DescriptionCategoryID int64       `json:"description_category_id"`
	ColorImage            string      `json:"color_image"`
	ComplexAttributes     []Attribute `json:"complex_attributes"`
	CurrencyCode          string      `json:"currency_code"`
	Depth                 int         `json:"depth"`
	DimensionUnit         string      `json:"dimension_unit"`
	Height                int         `json:"height"`
	Images                []string    `json:"images"`
	Images360             []string    `json:"images360"`
	Name                  string      `json:"name"`
	OfferID               string      `json:"offer_id"`
	OldPrice              string      `json:"old_price"`
	Price                 string      `json:"price"`
	PrimaryImage          string      `json:"primary_image"`
	Vat                   string      `json:"vat"`
	Weight                int         `json:"weight"`
	WeightUnit            string      `json:"weight_unit"`
	Width                 int         `json:"width"`
}

type Attribute struct {
	ComplexID int64            `json:"attribute_complex_id"`
	ID        int64            `json:"id"`
	Values    []AttributeValue `json:"values"`
}

type AttributeValue struct {
	Value        string `json:"value"`
	DictionaryID int64  `json:"dictionary_id,omitempty"`
}

// Article returns the part number carried in the listing attributes.
func (l Listing) Article() string {
	return l.AttributeValue(AttrPartNumber)
}

// AttributeValue returns the first value of the attribute with the given id.
func (l Listing) AttributeValue(id int64) string {
	for _, a := range l.Attributes {
		if a.ID == id && len(a.Values) > 0 {
			return a.Values[0].Value
		}
	}
	return ""
}
