package domain

import "time"

const (
	BadgeFirstUpload = "first_upload"
	BadgeTenUploads  = "ten_uploads"

	ActivityFileUpload = "file_upload"
)

type Badge struct {
	Name      string    `json:"name"`
	AwardedAt time.Time `json:"awarded_at"`
}

type ActivityRecord struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

type Streak struct {
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	LastDay string `json:"last_day,omitempty"`
}

// Profile is the owner record the metadata commit reads, mutates and saves.
// Files keeps insertion order. There is no cross-request locking around the
// read-modify-write: two uploads by the same owner finishing at nearly the
// same time can lose counter/badge updates.
type Profile struct {
	ID          string           `json:"id"`
	Files       []FileRecord     `json:"files"`
	UploadCount int              `json:"upload_count"`
	Badges      []Badge          `json:"badges"`
	Activity    []ActivityRecord `json:"activity"`
	Streak      Streak           `json:"streak"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func NewProfile(id string, now time.Time) *Profile {
	return &Profile{
		ID:        id,
		Files:     []FileRecord{},
		Badges:    []Badge{},
		Activity:  []ActivityRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Profile) AddFile(rec FileRecord) {
	p.Files = append(p.Files, rec)
}

// RemoveFile drops the entry for id, preserving order of the rest.
func (p *Profile) RemoveFile(id string) bool {
	for i, f := range p.Files {
		if f.ID == id {
			p.Files = append(p.Files[:i], p.Files[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Profile) FileByID(id string) (FileRecord, bool) {
	for _, f := range p.Files {
		if f.ID == id {
			return f, true
		}
	}
	return FileRecord{}, false
}

func (p *Profile) HasBadge(name string) bool {
	for _, b := range p.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// RecordUpload applies the gamification side effects of one committed upload:
// counter, study activity, streak and badge thresholds. Badges are checked by
// name before insertion so repeating a count never duplicates one. Returns
// the badges newly awarded by this call.
func (p *Profile) RecordUpload(now time.Time) []Badge {
	p.UploadCount++
	p.Activity = append(p.Activity, ActivityRecord{Type: ActivityFileUpload, At: now})
	p.touchStreak(now)

	var awarded []Badge
	for _, candidate := range []struct {
		name      string
		threshold int
	}{
		{BadgeFirstUpload, 1},
		{BadgeTenUploads, 10},
	} {
		if p.UploadCount >= candidate.threshold && !p.HasBadge(candidate.name) {
			badge := Badge{Name: candidate.name, AwardedAt: now}
			p.Badges = append(p.Badges, badge)
			awarded = append(awarded, badge)
		}
	}

	p.UpdatedAt = now
	return awarded
}

func (p *Profile) touchStreak(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	switch p.Streak.LastDay {
	case day:
		// Second upload on the same day leaves the streak untouched.
	case now.UTC().AddDate(0, 0, -1).Format("2006-01-02"):
		p.Streak.Current++
	default:
		p.Streak.Current = 1
	}
	if p.Streak.Current > p.Streak.Longest {
		p.Streak.Longest = p.Streak.Current
	}
	p.Streak.LastDay = day
}
