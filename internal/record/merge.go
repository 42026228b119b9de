package record

// Merge fills empty fields of dst from candidate and reports whether any
// field changed. Populated fields are never overwritten: each field is an
// independent first-observation-wins slot, which keeps re-applying the same
// candidate a no-op.
func Merge(dst *Business, candidate *Business) bool {
	changed := false

	fillStr := func(dstField *string, v string) {
		if *dstField == "" && v != "" {
			*dstField = v
			changed = true
		}
	}

	fillStr(&dst.Address, candidate.Address)
	fillStr(&dst.Phone, candidate.Phone)
	fillStr(&dst.WhatsApp, candidate.WhatsApp)
	fillStr(&dst.Email, candidate.Email)
	fillStr(&dst.Website, candidate.Website)
	fillStr(&dst.Instagram, candidate.Instagram)
	fillStr(&dst.Facebook, candidate.Facebook)
	fillStr(&dst.LinkedIn, candidate.LinkedIn)
	fillStr(&dst.Twitter, candidate.Twitter)
	fillStr(&dst.SourceURL, candidate.SourceURL)
	fillStr(&dst.Hours, candidate.Hours)

	if dst.Rating == nil && candidate.Rating != nil {
		v := *candidate.Rating
		dst.Rating = &v
		changed = true
	}
	if dst.ReviewCount == nil && candidate.ReviewCount != nil {
		v := *candidate.ReviewCount
		dst.ReviewCount = &v
		changed = true
	}
	if dst.Latitude == nil && candidate.Latitude != nil {
		v := *candidate.Latitude
		dst.Latitude = &v
		changed = true
	}
	if dst.Longitude == nil && candidate.Longitude != nil {
		v := *candidate.Longitude
		dst.Longitude = &v
		changed = true
	}

	return changed
}

// IdentityKey returns the normalized dedupe key for a record: name plus
// address when the address is present, name alone otherwise.
func IdentityKey(b *Business) (name, address string) {
	return NormalizeKey(b.Name), NormalizeKey(b.Address)
}
