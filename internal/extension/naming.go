package extension

import "regexp"

var extensionNamePattern = regexp.MustCompile(`^(@[\w-]+/)*magento-graphql-.+`)

// IsExtensionName reports whether a package name follows the extension
// naming convention, e.g. magento-graphql-foo or @vendor/magento-graphql-foo.
func IsExtensionName(name string) bool {
	return extensionNamePattern.MatchString(name)
}
