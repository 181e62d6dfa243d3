package storage

// Schema is the SQL schema for the idea-plate database. Timestamps are unix
// microseconds assigned by the store clock.
const Schema = `
CREATE TABLE IF NOT EXISTS ideas (
    id                   TEXT PRIMARY KEY,
    title                TEXT NOT NULL,
    description          TEXT NOT NULL,
    category             TEXT NOT NULL,
    author_id            TEXT NOT NULL,
    author_name          TEXT NOT NULL,
    author_email         TEXT NOT NULL,
    tags                 TEXT NOT NULL DEFAULT '[]',
    collaboration_status TEXT NOT NULL DEFAULT ''
                         CHECK(collaboration_status IN ('', 'lfp', 'gave-up')),
    collaborators        TEXT NOT NULL DEFAULT '[]',
    created_at           INTEGER NOT NULL,
    updated_at           INTEGER NOT NULL
);

-- Feed queries combine one equality filter with one order-by column.
CREATE INDEX IF NOT EXISTS idx_ideas_created ON ideas(created_at);
CREATE INDEX IF NOT EXISTS idx_ideas_title ON ideas(title);
CREATE INDEX IF NOT EXISTS idx_ideas_category_created ON ideas(category, created_at);
CREATE INDEX IF NOT EXISTS idx_ideas_category_title ON ideas(category, title);
CREATE INDEX IF NOT EXISTS idx_ideas_author_created ON ideas(author_id, created_at);
CREATE INDEX IF NOT EXISTS idx_ideas_author_title ON ideas(author_id, title);

-- Likes and comments reference ideas without a foreign key: deleting an
-- idea leaves them orphaned.
CREATE TABLE IF NOT EXISTS likes (
    idea_id  TEXT NOT NULL,
    user_id  TEXT NOT NULL,
    liked_at INTEGER NOT NULL,
    PRIMARY KEY (idea_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
    id          TEXT PRIMARY KEY,
    idea_id     TEXT NOT NULL,
    author_id   TEXT NOT NULL,
    author_name TEXT NOT NULL,
    text        TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_idea ON comments(idea_id, created_at);

CREATE TABLE IF NOT EXISTS collab_requests (
    id                 TEXT PRIMARY KEY,
    idea_id            TEXT NOT NULL,
    requester_id       TEXT NOT NULL,
    requester_name     TEXT NOT NULL,
    requester_email    TEXT NOT NULL,
    requester_github   TEXT NOT NULL DEFAULT '',
    requester_linkedin TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'pending'
                       CHECK(status IN ('pending', 'accepted', 'rejected')),
    created_at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_idea ON collab_requests(idea_id, created_at);

CREATE TABLE IF NOT EXISTS profiles (
    uid          TEXT PRIMARY KEY,
    email        TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    github       TEXT NOT NULL DEFAULT '',
    linkedin     TEXT NOT NULL DEFAULT '',
    twitter      TEXT NOT NULL DEFAULT '',
    website      TEXT NOT NULL DEFAULT '',
    github_link  TEXT NULL,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
`
