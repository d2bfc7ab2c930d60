package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sqlite-init/internal/schema"
)

var seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// ticksAtUnixEpoch is the number of 100ns ticks between 0001-01-01 and 1970-01-01.
const ticksAtUnixEpoch = 621355968000000000

// Ticks converts t to 100ns ticks since 0001-01-01, the layout used by
// BIGINT date/time columns.
func Ticks(t time.Time) int64 {
	return t.UTC().UnixNano()/100 + ticksAtUnixEpoch
}

// DateTimeLayout is the text layout of DATETIME columns.
const DateTimeLayout = "2006-01-02 15:04:05"

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

func sentence(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = gofakeit.Word()
	}
	return strings.Join(parts, " ")
}

// GenerateValue returns a random value for col. Text columns use the meaning
// of the column name to pick realistic content and respect MaxLength.
func GenerateValue(col *schema.ColumnDescriptor, dateTimeAsTicks bool) any {
	colName := strings.ToLower(col.Name)
	meaning := schema.AnalyzeMeaning(col.Name)

	switch col.Semantic {
	case schema.TypeUUID:
		return uuid.NewString()

	case schema.TypeBool:
		return gofakeit.Bool()

	case schema.TypeEnum:
		return seededRand.Intn(4)

	case schema.TypeInt, schema.TypeInt64:
		if strings.Contains(meaning, "yesno") || strings.Contains(colName, "active") || strings.Contains(colName, "enabled") {
			return seededRand.Intn(2)
		}
		if strings.Contains(meaning, "year") {
			return 2000 + seededRand.Intn(26)
		}
		if strings.Contains(meaning, "quantity") || strings.Contains(meaning, "count") {
			return gofakeit.Number(1, 100)
		}
		if col.Semantic == schema.TypeInt64 {
			return gofakeit.Int64() & 0x7fffffffffff
		}
		return gofakeit.Number(1, 50000)

	case schema.TypeFloat:
		return decimal.NewFromFloat(gofakeit.Price(0.99, 9999.99)).Round(4)

	case schema.TypeDouble:
		return gofakeit.Float64Range(0, 100000)

	case schema.TypeDateTime:
		val := gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())
		if dateTimeAsTicks {
			return Ticks(val)
		}
		return val.Format(DateTimeLayout)

	case schema.TypeBlob:
		return []byte(gofakeit.LetterN(16))

	case schema.TypeText:
		return truncate(generateText(colName, meaning, col.MaxLength), col.MaxLength)
	}
	return nil
}

func generateText(colName, meaning string, maxLen int) string {
	isID := strings.HasSuffix(colName, "id") || strings.Contains(meaning, "guid")

	switch {
	case strings.Contains(meaning, "guid"):
		return uuid.NewString()
	case isID:
		return gofakeit.LetterN(uint(min(12, max(maxLen, 1))))
	case strings.Contains(meaning, "email"):
		return gofakeit.Email()
	case strings.Contains(meaning, "phone"):
		return gofakeit.Phone()
	case strings.Contains(meaning, "name") || strings.Contains(colName, "first") || strings.Contains(colName, "last"):
		if maxLen > 0 && maxLen < 3 {
			return gofakeit.LetterN(uint(maxLen))
		}
		return gofakeit.Name()
	case strings.Contains(meaning, "address"):
		if strings.Contains(colName, "2") {
			return fmt.Sprintf("Floor %d, Room %d", seededRand.Intn(20)+1, seededRand.Intn(10)+1)
		}
		return gofakeit.Street()
	case strings.Contains(meaning, "zipcode") || strings.Contains(colName, "postal"):
		return gofakeit.Zip()
	case strings.Contains(meaning, "city"):
		return gofakeit.City()
	case strings.Contains(meaning, "country"):
		return gofakeit.Country()
	case strings.Contains(meaning, "yesno"):
		if seededRand.Intn(2) == 0 {
			return "Y"
		}
		return "N"
	case strings.Contains(meaning, "code"):
		return strings.ToUpper(gofakeit.LetterN(uint(min(8, max(maxLen, 1)))))
	case strings.Contains(meaning, "title") || strings.Contains(meaning, "subject"):
		return sentence(2)
	case strings.Contains(meaning, "description") || strings.Contains(meaning, "content") ||
		strings.Contains(meaning, "comment") || strings.Contains(meaning, "text") || strings.Contains(meaning, "message"):
		return sentence(10)
	}

	if maxLen > 0 && maxLen < 20 {
		return gofakeit.Word()
	}
	return sentence(5)
}
