package textutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Over Budget (Running)", "over_budget_running"},
		{"Chương Trình", "chuong_trinh"},
		{"Ngân Sách Đã Duyệt", "ngan_sach_da_duyet"},
		{"  spaced   out  ", "spaced_out"},
		{"already_normal", "already_normal"},
		{"MixedCASE123", "mixedcase123"},
		{"(((", ""},
		{"", ""},
		{"a--b__c", "a_b_c"},
		{"Déjà Vu", "deja_vu"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
