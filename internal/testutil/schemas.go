package testutil

// Schemas of the stores found inside an archive, reduced to the columns the
// extractors read. Column names and types follow the device's own stores.

// ManifestSchema is the manifest store's file table.
const ManifestSchema = `
CREATE TABLE Files (
	fileID TEXT PRIMARY KEY,
	domain TEXT,
	relativePath TEXT,
	flags INTEGER,
	file BLOB
);
CREATE INDEX FilesDomainIdx ON Files(domain);
CREATE INDEX FilesRelativePathIdx ON Files(relativePath);
`

// CallHistoryModernSchema is the Core Data call history store.
const CallHistoryModernSchema = `
CREATE TABLE ZCALLRECORD (
	Z_PK INTEGER PRIMARY KEY,
	Z_ENT INTEGER,
	ZADDRESS VARCHAR,
	ZDATE TIMESTAMP,
	ZDURATION FLOAT,
	ZCALLTYPE INTEGER,
	ZANSWERED INTEGER,
	ZORIGINATED INTEGER
);
`

// CallHistoryLegacySchema is the older call_history.db store.
const CallHistoryLegacySchema = `
CREATE TABLE call (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT,
	date INTEGER,
	duration INTEGER,
	flags INTEGER,
	read INTEGER
);
`

// NotesModernSchema is the shared-container note store.
const NotesModernSchema = `
CREATE TABLE ZICCLOUDSYNCINGOBJECT (
	Z_PK INTEGER PRIMARY KEY,
	ZTITLE1 VARCHAR,
	ZNOTEDATA INTEGER,
	ZCREATIONDATE1 TIMESTAMP,
	ZMODIFICATIONDATE1 TIMESTAMP
);
CREATE TABLE ZICNOTEDATA (
	Z_PK INTEGER PRIMARY KEY,
	ZNOTE INTEGER,
	ZDATA BLOB
);
`

// NotesLegacySchema is the older notes.sqlite store.
const NotesLegacySchema = `
CREATE TABLE note (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT,
	body TEXT,
	creation_date INTEGER,
	modification_date INTEGER
);
`

// MessagesSchema is the message store.
const MessagesSchema = `
CREATE TABLE handle (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	service TEXT
);
CREATE TABLE chat (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_identifier TEXT,
	display_name TEXT,
	service_name TEXT
);
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT,
	date INTEGER,
	is_from_me INTEGER DEFAULT 0,
	handle_id INTEGER DEFAULT 0,
	service TEXT
);
CREATE TABLE chat_message_join (
	chat_id INTEGER,
	message_id INTEGER,
	PRIMARY KEY (chat_id, message_id)
);
CREATE TABLE chat_handle_join (
	chat_id INTEGER,
	handle_id INTEGER
);
`

// ContactsSchema is the address book store.
const ContactsSchema = `
CREATE TABLE ABPerson (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	First TEXT,
	Last TEXT,
	Organization TEXT,
	Note TEXT
);
CREATE TABLE ABMultiValue (
	UID INTEGER PRIMARY KEY,
	record_id INTEGER,
	property INTEGER,
	label INTEGER,
	value TEXT
);
`
