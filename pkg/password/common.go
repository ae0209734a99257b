package password

// commonPasswords is a small embedded deny-list of frequently used
// passwords, matched case-insensitively.
var commonPasswords = map[string]struct{}{}

var commonPasswordList = []string{
	"password", "password1", "password123", "passw0rd",
	"123456", "1234567", "12345678", "123456789", "1234567890",
	"qwerty", "qwerty123", "qwertyuiop", "asdfghjkl", "zxcvbnm",
	"abc123", "abcd1234", "111111", "123123", "000000", "654321",
	"letmein", "welcome", "welcome1", "admin", "administrator",
	"iloveyou", "monkey", "dragon", "sunshine", "princess",
	"football", "baseball", "soccer", "superman", "batman",
	"trustno1", "whatever", "freedom", "shadow", "master",
	"michael", "jennifer", "charlie", "jordan", "hunter",
	"secret", "login", "starwars", "pokemon", "computer",
}

func init() {
	for _, p := range commonPasswordList {
		commonPasswords[p] = struct{}{}
	}
}
