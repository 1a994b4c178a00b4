package countries

// aliases maps normalised upstream spellings to alpha-3 codes. Keys are in
// normalised form: lower case, ASCII, stopwords (the, of, and) removed.
var aliases = map[string]string{
	"united states america":              "USA",
	"united states":                      "USA",
	"us":                                 "USA",
	"usa":                                "USA",
	"united kingdom":                     "GBR",
	"uk":                                 "GBR",
	"united kingdom england wales":       "GBR",
	"great britain":                      "GBR",
	"russia":                             "RUS",
	"russian federation":                 "RUS",
	"democratic republic congo":          "COD",
	"congo dem rep":                      "COD",
	"congo democratic republic":          "COD",
	"dr congo":                           "COD",
	"republic congo":                     "COG",
	"congo rep":                          "COG",
	"congo brazzaville":                  "COG",
	"congo":                              "COG",
	"myanmar formerly burma":             "MMR",
	"burma":                              "MMR",
	"korea rep":                          "KOR",
	"korea republic":                     "KOR",
	"republic korea":                     "KOR",
	"south korea":                        "KOR",
	"korea south":                        "KOR",
	"korea dem people s rep":             "PRK",
	"democratic people s republic korea": "PRK",
	"north korea":                        "PRK",
	"korea north":                        "PRK",
	"iran":                               "IRN",
	"iran islamic rep":                   "IRN",
	"iran islamic republic":              "IRN",
	"viet nam":                           "VNM",
	"vietnam":                            "VNM",
	"turkiye":                            "TUR",
	"turkey":                             "TUR",
	"czechia":                            "CZE",
	"czech republic":                     "CZE",
	"slovak republic":                    "SVK",
	"egypt arab rep":                     "EGY",
	"venezuela":                          "VEN",
	"venezuela rb":                       "VEN",
	"bolivia":                            "BOL",
	"tanzania":                           "TZA",
	"lao pdr":                            "LAO",
	"laos":                               "LAO",
	"syria":                              "SYR",
	"syrian arab republic":               "SYR",
	"cote d ivoire":                      "CIV",
	"ivory coast":                        "CIV",
	"kyrgyz republic":                    "KGZ",
	"kyrgyzstan":                         "KGZ",
	"gambia":                             "GMB",
	"bahamas":                            "BHS",
	"yemen rep":                          "YEM",
	"hong kong":                          "HKG",
	"hong kong china":                    "HKG",
	"hong kong sar china":                "HKG",
	"macao":                              "MAC",
	"macau":                              "MAC",
	"taiwan":                             "TWN",
	"chinese taipei":                     "TWN",
	"bosnia herzegovina":                 "BIH",
	"north macedonia":                    "MKD",
	"macedonia":                          "MKD",
	"moldova":                            "MDA",
	"brunei":                             "BRN",
	"brunei darussalam":                  "BRN",
	"cabo verde":                         "CPV",
	"cape verde":                         "CPV",
	"eswatini":                           "SWZ",
	"swaziland":                          "SWZ",
	"micronesia":                         "FSM",
	"micronesia fed sts":                 "FSM",
	"st lucia":                           "LCA",
	"st kitts nevis":                     "KNA",
	"st vincent grenadines":              "VCT",
	"sao tome principe":                  "STP",
	"timor leste":                        "TLS",
	"east timor":                         "TLS",
	"palestine":                          "PSE",
	"west bank gaza":                     "PSE",
	"curacao":                            "CUW",
	"guinea bissau":                      "GNB",
	"netherlands":                        "NLD",
	"libya":                              "LBY",
	"libyan arab jamahiriya":             "LBY",
	"holy see":                           "VAT",
	"vatican":                            "VAT",
	"vatican city":                       "VAT",
	"united republic tanzania":           "TZA",
	"tanzania united republic":           "TZA",
	"republic moldova":                   "MDA",
	"moldova republic":                   "MDA",
	"venezuela bolivarian republic":      "VEN",
	"bolivia plurinational state":        "BOL",
	"state palestine":                    "PSE",
	"lao people s democratic republic":   "LAO",
	"micronesia federated states":        "FSM",
}
