package mcpserver

// NoteFormatURI is the resource URI of NoteFormatContract.
const NoteFormatURI = "aiatlas://note-format"

// NoteFormatContract describes how corpus documents are written. Clients read
// it to interpret the fields returned by the note tools.
const NoteFormatContract = `# AI Atlas Note Format

Each note is one Markdown file stored at ` + "`<root>/<category>/<slug>.md`" + `.
The directory decides the category and the file name (without extension)
is the slug.

## Structure

` + "```" + `markdown
---
title: Retrieval Augmented Generation
category: llm
description: One-line summary shown in lists
tags: [rag, retrieval, llm]
difficulty: intermediate
readTime: 8
order: 3
author: aiatlas
coverImage: /images/rag.png
createdAt: 2025-01-15
updatedAt: 2025-02-01
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. The front-matter block is optional. When present, the first line is ` + "`---`" + `
   and the block ends at the next ` + "`---`" + ` line. A block that never closes
   makes the file unreadable and it is skipped.
2. One ` + "`key: value`" + ` per line. Values may be wrapped in single or double quotes.
   Nested YAML is not supported.
3. ` + "`tags`" + ` is written as ` + "`[a, b, c]`" + ` or ` + "`a, b, c`" + `. Tag matching is case-sensitive.
4. ` + "`difficulty`" + ` is one of beginner, intermediate, advanced (入门, 进阶, 高级
   are accepted). Anything else becomes beginner.
5. ` + "`readTime`" + ` is minutes. When absent it is estimated at 200 words per minute.
6. ` + "`order`" + ` sorts ascending; notes without one sort last (999). Ties sort by
   ` + "`updatedAt`" + ` newest first.
7. Dates use YYYY-MM-DD. Missing dates default to the scan date.
8. A ` + "`category`" + ` field that disagrees with the directory is ignored.
`
