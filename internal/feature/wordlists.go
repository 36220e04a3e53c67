package feature

// Closed-class function words tracked for the frequency fingerprint.
// The slice order is canonical: ties in frequency are broken by position
// here, which keeps profile rendering deterministic.
var functionWords = []string{
	// articles
	"the", "a", "an",
	// pronouns
	"i", "you", "he", "she", "it", "we", "they",
	"me", "him", "her", "us", "them",
	"my", "your", "his", "its", "our", "their",
	"this", "that", "these", "those",
	// conjunctions
	"and", "but", "or", "so", "because", "although", "while", "if",
	// common prepositions
	"of", "in", "to", "for", "with", "on", "at", "by", "from",
	"about", "into", "over", "after",
}

var functionWordIndex = buildIndex(functionWords)

// Curated casual marker phrases (1–3 grams) counted as signature-phrase
// candidates. Largely topic-independent speech habits.
var markerPhrases = []string{
	"you know", "i mean", "kind of", "sort of", "to be honest",
	"at the end of the day", "i guess", "i think", "i feel like",
	"the thing is", "to be fair", "long story short", "that said",
	"in fact", "of course", "by the way", "like i said", "no worries",
	"for sure", "pretty much",
	"basically", "actually", "honestly", "literally", "anyway",
	"obviously", "frankly", "seriously", "right",
}

// Formal connectors and registers.
var formalMarkers = []string{
	"furthermore", "moreover", "nevertheless", "nonetheless",
	"consequently", "accordingly", "therefore", "thus", "hence",
	"regarding", "whereas", "notwithstanding", "pursuant",
	"however", "whom", "shall", "hereby", "sincerely",
}

// Casual vocabulary. Contractions are detected separately by suffix.
var casualMarkers = []string{
	"gonna", "wanna", "gotta", "kinda", "sorta", "dunno",
	"yeah", "yep", "nope", "ok", "okay", "cool", "awesome",
	"stuff", "lol", "btw", "haha", "hey", "super",
}

// Contraction suffixes. The possessive "'s" is excluded: it is not a
// register signal.
var contractionSuffixes = []string{"n't", "'re", "'ll", "'ve", "'m", "'d"}

// Emphasis and excitement vocabulary for the enthusiasm score.
var enthusiasmMarkers = []string{
	"amazing", "awesome", "fantastic", "incredible", "love", "loved",
	"excellent", "brilliant", "wonderful", "excited", "exciting",
	"thrilled", "great", "perfect", "absolutely", "definitely",
	"totally", "huge", "best",
}

// Default technical vocabulary, overridable via Config.TechnicalWords.
var defaultTechnicalWords = []string{
	"algorithm", "api", "database", "server", "latency", "protocol",
	"compile", "compiler", "deploy", "deployment", "kernel", "runtime",
	"query", "cache", "thread", "concurrency", "encryption", "bandwidth",
	"framework", "repository", "debug", "refactor", "endpoint", "schema",
	"container", "pipeline", "regression", "vector", "backend", "frontend",
	"middleware", "sdk", "cli", "json", "config",
}

// IsFunctionWord reports whether w is in the tracked closed-class list.
// Exposed for the clusterer, which excludes function words from topic
// term extraction.
func IsFunctionWord(w string) bool {
	_, ok := functionWordIndex[w]
	return ok
}

func buildIndex(words []string) map[string]int {
	idx := make(map[string]int, len(words))
	for i, w := range words {
		idx[w] = i
	}
	return idx
}

func buildSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
