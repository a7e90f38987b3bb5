package indexer

// Standard Newznab categories, sport-TV slice.
// https://newznab.readthedocs.io/en/latest/misc/api/#predefined-categories
const (
	CategoryTV      = 5000
	CategoryTVSD    = 5030
	CategoryTVHD    = 5040
	CategoryTVUHD   = 5045
	CategoryTVOther = 5050
	CategoryTVSport = 5060
	CategoryTVAnime = 5070
	CategoryTVDoc   = 5080
)

// CategoryName returns a human-readable name for a category.
func CategoryName(id int) string {
	names := map[int]string{
		CategoryTV:      "TV",
		CategoryTVSD:    "TV/SD",
		CategoryTVHD:    "TV/HD",
		CategoryTVUHD:   "TV/UHD",
		CategoryTVOther: "TV/Other",
		CategoryTVSport: "TV/Sport",
		CategoryTVAnime: "TV/Anime",
		CategoryTVDoc:   "TV/Documentary",
	}
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}

// IsTVCategory reports whether the category falls inside the TV block.
func IsTVCategory(id int) bool {
	return id >= 5000 && id < 6000
}
