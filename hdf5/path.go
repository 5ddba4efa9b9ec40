package hdf5

import (
	"fmt"
	"path"
	"strings"
)

// ParseAttrPath splits "/group/object@attr" into the object path and the
// attribute name. "/@attr" names an attribute on the root group.
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	if p == "" {
		return "", "", fmt.Errorf("%w: empty attribute path", ErrInvalidPath)
	}

	at := strings.LastIndex(p, "@")
	if at == -1 {
		return "", "", fmt.Errorf("%w: missing '@' in %s", ErrInvalidPath, p)
	}
	objectPath, attrName = p[:at], p[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: empty attribute name in %s", ErrInvalidPath, p)
	}
	return CleanPath(objectPath), attrName, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath splits a path into its non-empty components.
func SplitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// CleanPath normalizes a path to start with "/" and have no trailing slash.
func CleanPath(p string) string {
	return path.Clean("/" + p)
}

// childPath joins a parent group path and a member name.
func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// depth is the number of components in an absolute path.
func depth(p string) int {
	return len(SplitPath(p))
}
