// Package codes canonicalizes the human-readable codes that identify catalog
// entities inside a shop.
package codes

import (
	"strings"
	"unicode"
)

// cyrillic maps Cyrillic letters to Latin sequences. Uppercase letters that
// expand to several Latin letters are capitalized, not fully upper-cased.
var cyrillic = map[rune]string{
	// Russian
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",

	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Е': "E", 'Ё': "Yo",
	'Ж': "Zh", 'З': "Z", 'И': "I", 'Й': "Y", 'К': "K", 'Л': "L", 'М': "M",
	'Н': "N", 'О': "O", 'П': "P", 'Р': "R", 'С': "S", 'Т': "T", 'У': "U",
	'Ф': "F", 'Х': "Kh", 'Ц': "Ts", 'Ч': "Ch", 'Ш': "Sh", 'Щ': "Shch",
	'Ъ': "", 'Ы': "Y", 'Ь': "", 'Э': "E", 'Ю': "Yu", 'Я': "Ya",

	// Ukrainian and Belarusian
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g", 'ў': "u",
	'Є': "Ye", 'І': "I", 'Ї': "Yi", 'Ґ': "G", 'Ў': "U",

	// Serbian and Macedonian
	'ђ': "dj", 'ј': "j", 'љ': "lj", 'њ': "nj", 'ћ': "c", 'џ': "dz",
	'ѓ': "gj", 'ќ': "kj", 'ѕ': "dz",
	'Ђ': "Dj", 'Ј': "J", 'Љ': "Lj", 'Њ': "Nj", 'Ћ': "C", 'Џ': "Dz",
	'Ѓ': "Gj", 'Ќ': "Kj", 'Ѕ': "Dz",
}

// Transliterate replaces Cyrillic letters with their Latin spelling.
// Non-Cyrillic characters pass through unchanged. Cyrillic code points with no
// table entry (archaic letters, combining marks) are dropped.
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if latin, ok := cyrillic[r]; ok {
			b.WriteString(latin)
			continue
		}
		if unicode.Is(unicode.Cyrillic, r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
