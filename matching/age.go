package matching

import "time"

// Age returns the whole years between dob and now. The boolean is false when
// dob is unknown or lies in the future.
func Age(dob, now time.Time) (int, bool) {
	if dob.IsZero() {
		return 0, false
	}
	by, bm, bd := dob.Date()
	ny, nm, nd := now.In(dob.Location()).Date()

	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// BirthDateBounds converts an inclusive age range into date-of-birth bounds:
// a member is in range when bornAfter < dob <= bornBefore. A zero bound is open.
func BirthDateBounds(ageMin, ageMax int, now time.Time) (bornAfter, bornBefore time.Time) {
	if ageMin > 0 {
		bornBefore = yearsBefore(now, ageMin)
	}
	if ageMax > 0 {
		bornAfter = yearsBefore(now, ageMax+1)
	}
	return bornAfter, bornBefore
}

// yearsBefore returns midnight of the same calendar day n years before now.
// Feb 29 maps to Feb 28 in a common year so the bound agrees with Age.
func yearsBefore(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	y -= n
	if m == time.February && d == 29 && !isLeap(y) {
		d = 28
	}
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
