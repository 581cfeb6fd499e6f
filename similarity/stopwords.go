package similarity

// stopWords holds function words plus the verbs and adjectives that appear in
// almost every news item and carry no topical signal. Words shorter than
// MinTokenLength are already filtered and are not listed.
var stopWords = toSet(
	// function words
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had",
	"her", "was", "one", "our", "out", "has", "have", "his", "how", "its", "may",
	"new", "now", "old", "see", "two", "who", "did", "get", "let", "put", "say",
	"she", "too", "use", "that", "this", "with", "from", "they", "them", "their",
	"there", "then", "than", "what", "when", "where", "which", "while", "will",
	"would", "could", "should", "been", "being", "were", "into", "onto", "upon",
	"about", "above", "after", "again", "against", "also", "because", "before",
	"below", "between", "both", "each", "few", "further", "here", "more", "most",
	"other", "over", "same", "some", "such", "only", "own", "very", "just",
	"does", "doing", "during", "under", "until", "your", "yours", "ours", "hers",
	"him", "himself", "herself", "itself", "themselves", "these", "those",
	"through", "why", "whom", "whose", "off", "down", "once", "like", "many",
	"much", "even", "ever", "every", "still", "yet", "via", "per", "within",
	"without", "across", "among", "around", "though", "although", "however",
	"whether", "either", "neither", "since", "something", "anything", "nothing",
	"dont", "doesnt", "didnt", "isnt", "arent", "wasnt", "werent", "cant",
	"wont", "its", "thats", "theres", "youre", "theyre",

	// generic news verbs
	"said", "says", "saying", "told", "tell", "tells", "report", "reports",
	"reported", "reporting", "according", "announced", "announce", "announces",
	"added", "noted", "stated", "claimed", "made", "make", "makes", "take",
	"takes", "took", "taken", "going", "goes", "went", "come", "comes", "came",
	"give", "gives", "gave", "given", "show", "shows", "showed", "shown",
	"know", "known", "think", "want", "wants", "need", "needs", "look", "looks",
	"set", "sets", "help", "helps", "seen", "found", "find", "finds", "keep",
	"read", "more", "continue", "continued", "expected", "included", "including",
	"update", "updated", "updates",

	// generic news adjectives and filler
	"latest", "breaking", "first", "last", "next", "year", "years", "week",
	"weeks", "day", "days", "today", "yesterday", "tomorrow", "time", "times",
	"people", "way", "ways", "thing", "things", "lot", "big", "good", "great",
	"top", "best", "high", "low", "long", "little", "major", "key", "well",
	"back", "part", "number", "three", "four", "five", "million", "billion",
	"percent", "news", "article", "story", "stories", "video", "photo", "photos",
	"image", "images", "click", "share", "comments", "subscribe",
)

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
