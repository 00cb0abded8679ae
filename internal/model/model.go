package model

// Update describes which fields of a contact shall be overwritten. Nil fields keep their
// current value.
type Update struct {
	First    *string
	Last     *string
	Twitter  *string
	Avatar   *string
	Notes    *string
	Favorite *bool
}

// Empty reports whether the update would not change anything.
func (u Update) Empty() bool {
	return u.First == nil && u.Last == nil && u.Twitter == nil && u.Avatar == nil &&
		u.Notes == nil && u.Favorite == nil
}

// EditForm is the schema of the contact edit form. A field that was not submitted stays nil.
type EditForm struct {
	First   *string `form:"first"   binding:"omitempty,max=255"`
	Last    *string `form:"last"    binding:"omitempty,max=255"`
	Twitter *string `form:"twitter" binding:"omitempty,max=255"`
	Avatar  *string `form:"avatar"  binding:"omitempty,max=1024"`
	Notes   *string `form:"notes"`
}

// EditFormFields are the names of all fields the edit form accepts.
var EditFormFields = []string{"first", "last", "twitter", "avatar", "notes"}

// Update converts the submitted form into a contact update.
func (f EditForm) Update() Update {
	return Update{
		First:   f.First,
		Last:    f.Last,
		Twitter: f.Twitter,
		Avatar:  f.Avatar,
		Notes:   f.Notes,
	}
}

// FavoriteForm is the schema of the favorite toggle. The value is the literal string "true" or
// "false".
type FavoriteForm struct {
	Favorite string `form:"favorite" binding:"required,oneof=true false"`
}

// FavoriteFormFields are the names of all fields the favorite form accepts.
var FavoriteFormFields = []string{"favorite"}

// Update converts the submitted form into a contact update.
func (f FavoriteForm) Update() Update {
	favorite := f.Favorite == "true"
	return Update{Favorite: &favorite}
}
