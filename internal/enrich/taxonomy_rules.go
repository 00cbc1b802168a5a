package enrich

// Stock taxonomy rules. Tier 2 channels are specific, tier 1 channels
// general; tier 1 rules may reference tier 2 channels or external
// labels directly. Channels prefixed with * are internal-only markers
// never surfaced to readers.

// DefaultTier2Rules maps tier 2 channels to external category labels.
var DefaultTier2Rules = map[string][]string{
	// Business
	"Companies": {"/News/Business News/Company News"},
	"Economy": {
		"/News/Business News/Economy News",
		"/People & Society/Social Sciences/Economics",
		"/People & Society/Social Issues & Advocacy/Work & Labor Issues",
	},
	"Finance":            {"/Finance*", "/News/Business News/Financial Markets News"},
	"Stocks & Investing": {"Finance/Investing*"},
	"Real Estate":        {"/Real Estate*"},

	// Arts, culture and entertainment
	"Art & Design": {"/Arts & Entertainment/Visual Art & Design*"},
	"Books":        {"/Books & Literature*"},
	"Celebrities":  {"/News/Gossip & Tabloid News/Other"},
	"Comics":       {"/Arts & Entertainment/Comics & Animation*"},
	"Culture":      {"/People & Society/Social Issues & Advocacy*"},
	"Gaming": {
		"/Games/Computer & Video Games*",
		"/Computers & Electronics/Consumer Electronics/Game Systems & Consoles",
	},
	"Film and TV": {
		"/Arts & Entertainment/Movies*",
		"/Arts & Entertainment/TV & Video/TV Shows & Programs",
		"/Arts & Entertainment/TV & Video/Online Video",
		"/Arts & Entertainment/Entertainment Industry/Film & TV Industry",
		"/Arts & Entertainment/Events & Listings/Film Festivals",
		"-/Arts & Entertainment/Movies/Other",
	},
	"Music": {
		"/Arts & Entertainment/Music & Audio*",
		"/Arts & Entertainment/Events & Listings/Concerts & Music Festivals",
		"-/Arts & Entertainment/Music & Audio/Podcasts",
	},
	"Architecture": {"/Arts & Entertainment/Visual Art & Design/Architecture"},
	"Humor":        {"/Arts & Entertainment/Humor*"},
	"Fun & Trivia": {
		"/Arts & Entertainment/Fun & Trivia*",
		"/Games/Puzzles & Brainteasers",
	},
	"Performing Arts": {"/Arts & Entertainment/Performing Arts*"},

	// Lifestyle
	"Fashion": {"/Beauty & Fitness/Fashion & Style*"},
	"Food & Drink": {
		"/Food & Drink*",
		"/Arts & Entertainment/Events & Listings/Food & Beverage Events",
	},
	"Health & Fitness": {
		"/Beauty & Fitness/Fitness*",
		"/Food & Drink/Cooking & Recipes/Healthy Eating",
		"/News/Health News",
		"/Beauty & Fitness/Face & Body Care*",
		"/People & Society/Social Sciences/Psychology",
		"/Health/Nutrition*",
	},
	"Home & Garden": {
		"/Home & Garden*",
		"/Computers & Electronics/Consumer Electronics/Home Automation",
	},
	"Travel": {
		"/Travel & Transportation/Specialty Travel*",
		"/Travel & Transportation/Tourist Destinations*",
		"/Travel & Transportation/Travel Guides & Travelogues",
	},
	"Education": {
		"/Jobs & Education/Education*",
		"/People & Society/Self-Help & Motivational",
		"/Arts & Entertainment/Music & Audio/Music Education & Instruction",
		"/Reference/General Reference/Educational Resources",
	},
	"Relationships": {
		"/People & Society/Family & Relationships*",
		"/Hobbies & Leisure/Special Occasions/Weddings",
	},
	"Pets":    {"/Pets & Animals*"},
	"Medical": {"/Health*"},

	// Technology
	"Consumer Electronics": {
		"/Computers & Electronics/Consumer Electronics*",
		"-/Computers & Electronics/Consumer Electronics/Game Systems & Consoles",
	},
	"Internet": {
		"/Internet & Telecom*",
		"/Computers & Electronics/Computer Security*",
		"/Computers & Electronics/Networking",
	},
	"Gadgets": {
		"/Computers & Electronics/Consumer Electronics*",
		"-/Computers & Electronics/Consumer Electronics/Game Systems & Consoles",
	},
	"Software": {"/Computers & Electronics/Software*"},
	"Artificial Intelligence": {
		"/Science/Computer Science/Machine Learning & Artificial Intelligence",
	},

	// Sports
	"American Football": {"/Sports/Team Sports/American Football"},
	"Football":          {"/Sports/Team Sports/Soccer"},
	"Basketball":        {"/Sports/Team Sports/Basketball"},
	"Baseball":          {"/Sports/Team Sports/Baseball"},
	"Hockey":            {"/Sports/Team Sports/Hockey"},
	"Golf":              {"/Sports/Individual Sports/Golf"},
	"Cricket":           {"/Sports/Team Sports/Cricket"},
	"Tennis":            {"/Sports/Individual Sports/Tennis"},
	"Rugby":             {"/Sports/Team Sports/Rugby"},
	"Motorsports":       {"/Sports/Motor Sports*"},
	"Combat":            {"/Sports/Combat Sports*"},

	// Science
	"Space":       {"/Science/Astronomy"},
	"Environment": {"/Science/Earth Sciences/Environmental Science"},
	"Physics":     {"/Science/Physics"},
	"Biology":     {"/Science/Biological Sciences*"},

	// Sensitive
	"War":   {"/Sensitive Subjects/War & Conflict"},
	"Drugs": {"/Sensitive Subjects/Recreational Drugs"},

	// Others
	"Royals":    {"/Law & Government/Government/Royalty"},
	"Elections": {"/News/Politics/Campaigns & Elections"},
}

// DefaultTier1Rules maps tier 1 channels to tier 2 channels or
// external labels.
var DefaultTier1Rules = map[string][]string{
	"Business": {
		"Companies",
		"Finance",
		"Economy",
		"Stocks & Investing",
		"Personal Finance",
		"Real Estate",
		"/News/Business News*",
	},
	"Entertainment": {
		"Art & Design",
		"Books",
		"Comics",
		"Film and TV",
		"Music",
		"Architecture",
		"Performing Arts",
	},
	"Gaming": {"Gaming"},
	"Lifestyle": {
		"Fashion",
		"Food & Drink",
		"Health & Fitness",
		"Home & Garden",
		"Travel",
		"Education",
		"Relationships",
		"Pets",
	},
	"Technology": {
		"Consumer Electronics",
		"Internet",
		"Gadgets",
		"Software",
		"Artificial Intelligence",
		"/News/Technology News",
		"/Business & Industrial/Aerospace & Defense/Space Technology",
	},
	"Sports": {
		"Football",
		"Basketball",
		"Baseball",
		"Hockey",
		"Golf",
		"Cricket",
		"Tennis",
		"Rugby",
		"Motorsports",
		"Combat",
		"American Football",
		"/Sports*",
		"/News/Sports News",
	},
	"Science": {"Space", "Environment", "Physics", "Biology", "/Science*"},

	"Cars":        {"/Autos & Vehicles/Motor Vehicles*"},
	"Celebrities": {"Celebrities", "Royals", "-/News/Politics*"},
	"Culture":     {"Culture"},
	"Politics":    {"Elections", "/News/Politics*"},
	"Weather":     {"/News/Weather"},
	"World News":  {"/News/World News"},
	"Fun":         {"Fun & Trivia", "Humor"},
	"*Reviews":    {"/Shopping/Consumer Resources/Product Reviews & Price Comparisons"},
	"*Offers":     {"/Shopping/Consumer Resources/Coupons & Discount Offers"},
	"*Adult":      {"/Adult"},
	"*Sensitive":  {"War", "Drugs", "/Sensitive Subjects*"},
	"*Belief":     {"/People & Society/Religion & Belief"},
}

// DefaultTaxonomies compiles the stock rule sets against a classifier
// vocabulary. The tier 1 taxonomy also expands against the tier 2
// channel names, since tier 2 hits are fed back through it.
func DefaultTaxonomies(vocabulary []string) (tier2, tier1 *Taxonomy) {
	tier2 = BuildTaxonomy(DefaultTier2Rules, vocabulary)

	tier1Vocab := append([]string(nil), vocabulary...)
	for channel := range DefaultTier2Rules {
		tier1Vocab = append(tier1Vocab, channel)
	}
	tier1 = BuildTaxonomy(DefaultTier1Rules, tier1Vocab)
	return tier2, tier1
}
