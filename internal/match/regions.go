package match

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// regionsFile is the on-disk shape of a region table:
//
//	regions:
//	  gush_dan:
//	    - Tel Aviv
//	    - Ramat Gan
type regionsFile struct {
	Regions map[string][]string `yaml:"regions"`
}

// LoadRegions reads a region-membership table from a YAML file.
func LoadRegions(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("match: read regions file: %w", err)
	}
	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("match: parse regions file %s: %w", path, err)
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("match: regions file %s has no regions", path)
	}
	return f.Regions, nil
}

// DefaultRegions is the built-in region-membership table, used when no
// regions file is configured.
func DefaultRegions() map[string][]string {
	return map[string][]string{
		"gush_dan":  {"Tel Aviv", "Ramat Gan", "Givatayim", "Bnei Brak", "Holon", "Bat Yam"},
		"jerusalem": {"Jerusalem", "Beit Shemesh", "Modiin"},
		"haifa":     {"Haifa", "Krayot", "Kiryat Bialik", "Kiryat Ata", "Kiryat Motzkin"},
		"sharon":    {"Raanana", "Kfar Saba", "Herzliya", "Ramat Hasharon", "Hod Hasharon"},
		"south":     {"Beer Sheva", "Ashdod", "Ashkelon"},
		"north":     {"Nazareth", "Karmiel", "Safed", "Tiberias"},
	}
}
