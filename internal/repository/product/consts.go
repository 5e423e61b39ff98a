package product

import "time"

const (
	// collection name
	productNode string = "products"

	// Fields' name and path
	NameFieldPath     string = "name"
	CategoryFieldPath string = "category"
	PriceFieldPath    string = "price"
	StockFieldPath    string = "stock"
	SalesFieldPath    string = "sales"
	ImgUrlFieldPath   string = "imgUrl"

	// It must not exceed the time a subscriber is given to drain a snapshot
	channelWriteTimeout time.Duration = time.Second * 3
)
