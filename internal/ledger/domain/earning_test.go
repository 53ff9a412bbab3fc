package ledger

import (
	"errors"
	"testing"
	"time"

	"fleet-settlement/internal/money"
)

func TestNewEarningRecord_DerivesBTW(t *testing.T) {
	rec, err := NewEarningRecord(NewEarning{
		ID:            "e-1",
		ContractID:    "contract-1",
		CompanyID:     "company-1",
		Platform:      PlatformUber,
		GrossIncome:   money.MustParse("100"),
		BTWPercentage: money.MustParse("9"),
		IncomeDate:    time.Date(2026, time.March, 4, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new earning: %v", err)
	}
	if !rec.BTWAmount.Equal(money.MustParse("9")) || !rec.NetIncome.Equal(money.MustParse("91")) {
		t.Fatalf("btw split mismatch: btw=%s net=%s", rec.BTWAmount, rec.NetIncome)
	}
	wantStart := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if !rec.WeekStart.Equal(wantStart) || !rec.WeekEnd.Equal(wantStart.AddDate(0, 0, 6)) {
		t.Fatalf("week window mismatch: %s - %s", rec.WeekStart, rec.WeekEnd)
	}
	if rec.IsSettled() {
		t.Fatalf("new record must be unsettled")
	}
}

func TestNewEarningRecord_Validation(t *testing.T) {
	base := NewEarning{
		ContractID:    "contract-1",
		CompanyID:     "company-1",
		Platform:      PlatformBolt,
		GrossIncome:   money.MustParse("10"),
		BTWPercentage: money.MustParse("9"),
		IncomeDate:    time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		WeekStart:     time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		WeekEnd:       time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
	}
	cases := []struct {
		name   string
		mutate func(*NewEarning)
		want   error
	}{
		{"missing contract", func(in *NewEarning) { in.ContractID = "" }, ErrEmptyContractID},
		{"missing company", func(in *NewEarning) { in.CompanyID = "" }, ErrEmptyCompanyID},
		{"unknown platform", func(in *NewEarning) { in.Platform = "lyft" }, ErrUnknownPlatform},
		{"income before week", func(in *NewEarning) { in.IncomeDate = in.WeekStart.AddDate(0, 0, -1) }, ErrInvalidWeek},
		{"income after week", func(in *NewEarning) { in.IncomeDate = in.WeekEnd.AddDate(0, 0, 1) }, ErrInvalidWeek},
		{"inverted week", func(in *NewEarning) { in.WeekStart, in.WeekEnd = in.WeekEnd, in.WeekStart }, ErrInvalidWeek},
		{"negative gross", func(in *NewEarning) { in.GrossIncome = money.MustParse("-1") }, money.ErrInvalidAmount},
		{"percentage too high", func(in *NewEarning) { in.BTWPercentage = money.MustParse("101") }, money.ErrInvalidAmount},
		{"gross below a cent", func(in *NewEarning) { in.GrossIncome = money.MustParse("10.005") }, money.ErrInvalidAmount},
		{"percentage with three decimals", func(in *NewEarning) { in.BTWPercentage = money.MustParse("33.333") }, money.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if _, err := NewEarningRecord(in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewEarningRecord_SundayEveningBelongsToWeek(t *testing.T) {
	_, err := NewEarningRecord(NewEarning{
		ContractID:    "contract-1",
		CompanyID:     "company-1",
		Platform:      PlatformDirect,
		GrossIncome:   money.MustParse("10"),
		BTWPercentage: money.MustParse("9"),
		IncomeDate:    time.Date(2026, time.March, 8, 22, 30, 0, 0, time.UTC),
		WeekStart:     time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		WeekEnd:       time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("sunday evening should be inside the week: %v", err)
	}
}

func TestNewEarningRecord_WeekBoundsAreCalendarDays(t *testing.T) {
	sunday := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"default week", time.Time{}, time.Time{}},
		{"explicit week with time of day", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := NewEarningRecord(NewEarning{
				ContractID:    "contract-1",
				CompanyID:     "company-1",
				Platform:      PlatformUber,
				GrossIncome:   money.MustParse("10"),
				BTWPercentage: money.MustParse("9"),
				IncomeDate:    sunday,
				WeekStart:     tc.start,
				WeekEnd:       tc.end,
			})
			if err != nil {
				t.Fatalf("new record: %v", err)
			}
			wantStart := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
			wantEnd := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
			if !rec.WeekStart.Equal(wantStart) || !rec.WeekEnd.Equal(wantEnd) {
				t.Fatalf("week = [%s, %s]", rec.WeekStart, rec.WeekEnd)
			}
		})
	}
}

func TestDuplicateKey_IgnoresTrailingZeros(t *testing.T) {
	a := EarningRecord{ContractID: "c", Platform: PlatformUber, GrossIncome: money.MustParse("100.00"), IncomeDate: time.Unix(0, 0)}
	b := EarningRecord{ContractID: "c", Platform: PlatformUber, GrossIncome: money.MustParse("100"), IncomeDate: time.Unix(0, 0)}
	if a.DuplicateKey() != b.DuplicateKey() {
		t.Fatalf("expected equal keys: %s vs %s", a.DuplicateKey(), b.DuplicateKey())
	}
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Uber ")
	if err != nil || p != PlatformUber {
		t.Fatalf("parse platform: %v %s", err, p)
	}
	if _, err := ParsePlatform("lyft"); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
	for _, p := range Platforms() {
		if !p.Valid() || p.DisplayName() == "" {
			t.Fatalf("platform %s should be valid with a display name", p)
		}
	}
}
