package model

import "time"

// Contact is the data structure for a person that we know.
// All fields with the exception of the ID field may be empty.
type Contact struct {
	ID        string    `json:"id"        db:"id"`
	First     string    `json:"first"     db:"first_name"`
	Last      string    `json:"last"      db:"last_name"`
	Twitter   string    `json:"twitter"   db:"twitter"`
	Avatar    string    `json:"avatar"    db:"avatar"`
	Notes     string    `json:"notes"     db:"notes"`
	Favorite  bool      `json:"favorite"  db:"favorite"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HasName reports whether the contact has a first or a last name.
func (c Contact) HasName() bool {
	return c.First != "" || c.Last != ""
}

// ContactList is the payload of the root loader. Q is nil when the request carried no search
// query at all, which is different from an empty search.
type ContactList struct {
	Contacts []Contact `json:"contacts"`
	Q        *string   `json:"q"`
}

// Message is the JSON body of error responses.
type Message struct {
	Message string `json:"message"`
}

// ContactDetail is the payload of the contact detail and edit loaders.
type ContactDetail struct {
	Contact Contact `json:"contact"`
}

// Book is an entry of the GraphQL demo.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// BookList is the JSON payload of the GraphQL demo page.
type BookList struct {
	Books []Book `json:"books"`
}
