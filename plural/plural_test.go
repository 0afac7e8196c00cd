package plural

import (
	"reflect"
	"testing"
)

func TestCardinalCategories(t *testing.T) {
	tests := []struct {
		locale string
		want   []string
	}{
		{"en", []string{One, Other}},
		{"de", []string{One, Other}},
		{"ru", []string{One, Few, Many, Other}},
		{"uk", []string{One, Few, Many, Other}},
		{"pl", []string{One, Few, Many, Other}},
		{"ja", []string{Other}},
		{"zh", []string{Other}},
		{"ar", []string{Zero, One, Two, Few, Many, Other}},
		{"pt_BR", []string{One, Other}},
	}

	for _, tc := range tests {
		t.Run(tc.locale, func(t *testing.T) {
			if got := Categories(tc.locale, false); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Categories(%q, false) = %v, want %v", tc.locale, got, tc.want)
			}
		})
	}
}

func TestOrdinalCategories(t *testing.T) {
	if got, want := Categories("en", true), []string{One, Two, Few, Other}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories(en, true) = %v, want %v", got, want)
	}
	if got, want := Categories("ru", true), []string{Other}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories(ru, true) = %v, want %v", got, want)
	}
}

func TestInvalidLocaleFallsBack(t *testing.T) {
	if got := Categories("not a locale!", false); !reflect.DeepEqual(got, Fallback) {
		t.Fatalf("Categories(invalid) = %v, want %v", got, Fallback)
	}
}

func TestCategoriesAreCached(t *testing.T) {
	a := Categories("ru", false)
	b := Categories("ru", false)
	if &a[0] != &b[0] {
		t.Fatal("expected cached slice to be reused")
	}
}

func TestDecimalOperands(t *testing.T) {
	tests := []struct {
		i, v, f int
		want    operand
	}{
		{1, 1, 0, operand{i: 1, v: 1, w: 0, f: 0, t: 0}},
		{1, 1, 5, operand{i: 1, v: 1, w: 1, f: 5, t: 5}},
		{2, 2, 50, operand{i: 2, v: 2, w: 1, f: 50, t: 5}},
		{0, 2, 7, operand{i: 0, v: 2, w: 2, f: 7, t: 7}},
	}
	for _, tc := range tests {
		if got := decimal(tc.i, tc.v, tc.f); got != tc.want {
			t.Fatalf("decimal(%d, %d, %d) = %+v, want %+v", tc.i, tc.v, tc.f, got, tc.want)
		}
	}
}
