package doctor

import "testing"

func TestParseMajorMinor(t *testing.T) {
	tests := []struct {
		ver          string
		major, minor int
		wantErr      bool
	}{
		{"1.23.0", 1, 23, false},
		{"1.17", 1, 17, false},
		{"2.0.1-rc1", 2, 0, false},
		{"1", 0, 0, true},
		{"x.2", 0, 0, true},
		{"1.y", 0, 0, true},
	}

	for _, tc := range tests {
		major, minor, err := parseMajorMinor(tc.ver)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseMajorMinor(%q) = %d.%d, nil; want error", tc.ver, major, minor)
			}

			continue
		}

		if err != nil || major != tc.major || minor != tc.minor {
			t.Errorf("parseMajorMinor(%q) = %d.%d, %v; want %d.%d", tc.ver, major, minor, err, tc.major, tc.minor)
		}
	}
}

func TestCheckORTVersion(t *testing.T) {
	tests := []struct {
		ver     string
		api     int
		wantErr bool
	}{
		{"1.23.0", 23, false},
		{"1.24.1", 23, false},
		{"1.22.0", 23, true},
		{"2.0.0", 23, true},
		{"unknown", 23, false},
		{"", 23, false},
		{"1.10.0", 0, false},
		{"garbage", 23, true},
	}

	for _, tc := range tests {
		err := checkORTVersion(tc.ver, tc.api)
		if (err != nil) != tc.wantErr {
			t.Errorf("checkORTVersion(%q, %d) = %v; wantErr %v", tc.ver, tc.api, err, tc.wantErr)
		}
	}
}
