package matching

import "strings"

// Bucket is a coarse professional field.
type Bucket string

const (
	BucketNone      Bucket = ""
	BucketIT        Bucket = "IT"
	BucketMedical   Bucket = "Medical"
	BucketEducation Bucket = "Education"
	BucketBusiness  Bucket = "Business"
)

var professionBuckets = []struct {
	bucket   Bucket
	keywords []string
}{
	{BucketIT, []string{"software engineer", "data scientist", "developer"}},
	{BucketMedical, []string{"doctor", "nurse", "pharmacist"}},
	{BucketEducation, []string{"teacher", "professor", "tutor"}},
	{BucketBusiness, []string{"manager", "consultant", "entrepreneur"}},
}

// OccupationBucket maps a free-text occupation to its field. Buckets are
// checked in IT, Medical, Education, Business order and the last one with a
// contained keyword wins, so "Software Engineer and Manager" is Business.
func OccupationBucket(occupation string) Bucket {
	occ := strings.ToLower(strings.TrimSpace(occupation))
	if occ == "" {
		return BucketNone
	}
	for i := len(professionBuckets) - 1; i >= 0; i-- {
		for _, kw := range professionBuckets[i].keywords {
			if strings.Contains(occ, kw) {
				return professionBuckets[i].bucket
			}
		}
	}
	return BucketNone
}
