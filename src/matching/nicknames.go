package matching

// defaultNicknames maps common short given names to the formal form.
var defaultNicknames = map[string]string{
	"bill": "william", "will": "william", "billy": "william", "willy": "william",
	"bob": "robert", "bobby": "robert", "rob": "robert", "robby": "robert", "bert": "robert",
	"jim": "james", "jimmy": "james", "jamie": "james",
	"mike": "michael", "mick": "michael", "mickey": "michael",
	"tom": "thomas", "tommy": "thomas",
	"dick": "richard", "rick": "richard", "ricky": "richard", "rich": "richard",
	"chuck": "charles", "charlie": "charles",
	"ted": "edward", "ed": "edward", "eddie": "edward", "ned": "edward",
	"joe": "joseph", "joey": "joseph",
	"dan": "daniel", "danny": "daniel",
	"dave": "david",
	"steve": "steven", "stephen": "steven",
	"chris": "christopher",
	"tony": "anthony",
	"andy": "andrew", "drew": "andrew",
	"ben": "benjamin",
	"matt": "matthew",
	"pat": "patrick",
	"greg": "gregory",
	"jerry": "gerald",
	"larry": "lawrence",
	"ron": "ronald",
	"don": "donald",
	"doug": "douglas",
	"jeff": "jeffrey",
	"ken": "kenneth",
	"mitch": "mitchell",
	"nick": "nicholas",
	"sam": "samuel",
	"tim": "timothy",
	"josh": "joshua",
	"jon": "jonathan",
	"rand": "randal",
	"liz": "elizabeth", "beth": "elizabeth", "betsy": "elizabeth",
	"kathy": "katherine", "kate": "katherine", "katie": "katherine",
	"debbie": "deborah", "deb": "deborah",
	"sue": "susan", "suzy": "susan",
	"patty": "patricia", "patsy": "patricia",
	"cathy": "catherine",
	"maggie": "margaret", "peggy": "margaret",
	"jenny": "jennifer", "jen": "jennifer",
	"val": "valerie",
	"gus": "augustus",
	"buddy": "earl",
}
